package commands

import (
	"fmt"
	"strconv"
	"strings"
)

// Grid dimensions.
const (
	GridColumns = 50
	FrontLabel  = "Front"
	BackLabel   = "Back"
)

// GridRows are the row letters, front to back of the layout.
var GridRows = []string{"A", "B"}

// spacerAfter lists columns followed by a visual gap.
var spacerAfter = map[int]bool{10: true, 30: true, 40: true}

// Position is a grid cell such as "A12".
type Position struct {
	Row    string `json:"row"`
	Column int    `json:"column"`
}

// String returns the wire form, e.g. "B7".
func (p Position) String() string {
	return p.Row + strconv.Itoa(p.Column)
}

// Validate checks the position lies on the grid.
func (p Position) Validate() error {
	if !validRow(p.Row) {
		return fmt.Errorf("%w: row %q", ErrInvalidPosition, p.Row)
	}
	if p.Column < 1 || p.Column > GridColumns {
		return fmt.Errorf("%w: column %d", ErrInvalidPosition, p.Column)
	}
	return nil
}

// ParsePosition parses "A12" style input. Row letters are case-insensitive.
func ParsePosition(s string) (Position, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return Position{}, fmt.Errorf("%w: %q", ErrInvalidPosition, s)
	}
	col, err := strconv.Atoi(s[1:])
	if err != nil {
		return Position{}, fmt.Errorf("%w: %q", ErrInvalidPosition, s)
	}
	p := Position{Row: strings.ToUpper(s[:1]), Column: col}
	if err := p.Validate(); err != nil {
		return Position{}, err
	}
	return p, nil
}

func validRow(row string) bool {
	for _, r := range GridRows {
		if r == row {
			return true
		}
	}
	return false
}

// Cell is one grid button.
type Cell struct {
	Position Position `json:"position"`
	Label    string   `json:"label"`
	// SpacerAfter marks a gap between this cell and the next.
	SpacerAfter bool `json:"spacer_after"`
}

// Layout describes the grid for the dashboard.
type Layout struct {
	FrontLabel string   `json:"front_label"`
	BackLabel  string   `json:"back_label"`
	Rows       [][]Cell `json:"rows"`
}

// Grid returns the full grid layout.
func Grid() Layout {
	l := Layout{FrontLabel: FrontLabel, BackLabel: BackLabel}
	for _, row := range GridRows {
		cells := make([]Cell, 0, GridColumns)
		for col := 1; col <= GridColumns; col++ {
			p := Position{Row: row, Column: col}
			cells = append(cells, Cell{Position: p, Label: p.String(), SpacerAfter: spacerAfter[col]})
		}
		l.Rows = append(l.Rows, cells)
	}
	return l
}
