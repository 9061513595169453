package shell

import (
	"errors"
	"fmt"
	"strings"
)

// ErrQuit is returned by the Quit item
var ErrQuit = errors.New("quit requested")

// MenuItem is one entry of the application menu
type MenuItem struct {
	Label       string
	Accelerator string
	Action      func() error
}

// Menu dispatches menu commands by label or accelerator
type Menu struct {
	items []MenuItem
}

// NewMenu creates a menu with items in display order
func NewMenu(items ...MenuItem) *Menu {
	return &Menu{items: items}
}

// Items returns the menu entries in display order
func (m *Menu) Items() []MenuItem {
	return append([]MenuItem(nil), m.items...)
}

// Dispatch runs the item whose label or accelerator matches input, ignoring case
func (m *Menu) Dispatch(input string) (MenuItem, error) {
	input = strings.TrimSpace(input)
	for _, item := range m.items {
		if strings.EqualFold(item.Label, input) || (item.Accelerator != "" && strings.EqualFold(item.Accelerator, input)) {
			if item.Action == nil {
				return item, nil
			}
			return item, item.Action()
		}
	}
	return MenuItem{}, fmt.Errorf("unknown menu command %q", input)
}

// Help renders the menu as one line per item
func (m *Menu) Help() string {
	var b strings.Builder
	for _, item := range m.items {
		if item.Accelerator != "" {
			fmt.Fprintf(&b, "  %-24s %s\n", item.Label, item.Accelerator)
		} else {
			fmt.Fprintf(&b, "  %s\n", item.Label)
		}
	}
	return b.String()
}
