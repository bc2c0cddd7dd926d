package turn

import (
	"fmt"
	"strings"
)

// Category is a turn slot. Categories run in declaration order and wrap.
type Category int

const (
	Player Category = iota
	World
	Enemy
	Post

	categoryCount
)

// Categories lists every category in turn order.
var Categories = []Category{Player, World, Enemy, Post}

func (c Category) String() string {
	switch c {
	case Player:
		return "player"
	case World:
		return "world"
	case Enemy:
		return "enemy"
	case Post:
		return "post"
	}
	return fmt.Sprintf("category(%d)", int(c))
}

func (c Category) IsValid() bool {
	return c >= 0 && c < categoryCount
}

// Next returns the category that follows c, wrapping Post back to Player.
func (c Category) Next() Category {
	return (c + 1) % categoryCount
}

func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if strings.EqualFold(strings.TrimSpace(s), c.String()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown turn category %q", s)
}
