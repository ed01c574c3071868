package threshold

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RGBA is a CSS color. A is the alpha channel in [0, 1]; colors with A == 1 are
// rendered without it, which is how the dashboard stylesheets write them.
type RGBA struct {
	R, G, B uint8
	A       float64
}

func rgb(r, g, b uint8) RGBA {
	return RGBA{R: r, G: g, B: b, A: 1}
}

func (c RGBA) String() string {
	if c.A == 1 {
		return fmt.Sprintf("rgba(%d,%d,%d)", c.R, c.G, c.B)
	}
	return fmt.Sprintf("rgba(%d,%d,%d,%s)", c.R, c.G, c.B, strconv.FormatFloat(c.A, 'f', -1, 64))
}

// WithAlpha returns c with its alpha channel replaced. Chart fills use a
// translucent version of the band color.
func (c RGBA) WithAlpha(a float64) RGBA {
	c.A = a
	return c
}

func (c RGBA) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *RGBA) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	var r, g, b uint8
	switch strings.Count(s, ",") {
	case 2:
		if _, err := fmt.Sscanf(s, "rgba(%d,%d,%d)", &r, &g, &b); err != nil {
			return fmt.Errorf("threshold: bad color %q: %w", s, err)
		}
		*c = rgb(r, g, b)
	case 3:
		var a float64
		if _, err := fmt.Sscanf(s, "rgba(%d,%d,%d,%g)", &r, &g, &b, &a); err != nil {
			return fmt.Errorf("threshold: bad color %q: %w", s, err)
		}
		*c = RGBA{R: r, G: g, B: b, A: a}
	default:
		return fmt.Errorf("threshold: bad color %q", s)
	}
	return nil
}
