// pattern: Functional Core

package tui

// Region defines a rectangular area within the terminal.
type Region struct {
	X      int // Left position (0-indexed)
	Y      int // Top position (0-indexed)
	Width  int // Width in cells
	Height int // Height in lines
}

// Layout holds computed regions for the browser.
type Layout struct {
	Header    Region // title and scope line
	List      Region // worktree list, 45% wide when the detail panel is open
	Detail    Region // detail panel, zero sized when closed
	StatusBar Region
}

const (
	headerHeight    = 2
	statusBarHeight = 1
	marginHeight    = 1
	minListHeight   = 3
)

// ComputeLayout calculates regions from terminal dimensions.
func ComputeLayout(width, height int, detailOpen bool) Layout {
	content := height - headerHeight - statusBarHeight - marginHeight
	if content < minListHeight {
		content = minListHeight
	}

	header := Region{Width: width, Height: headerHeight}
	y := headerHeight

	list := Region{Y: y, Width: width, Height: content}
	var detail Region
	if detailOpen {
		listWidth := width * 45 / 100
		list.Width = listWidth
		detail = Region{X: listWidth, Y: y, Width: width - listWidth, Height: content}
	}
	y += content

	return Layout{
		Header:    header,
		List:      list,
		Detail:    detail,
		StatusBar: Region{Y: y, Width: width, Height: statusBarHeight},
	}
}

// ListHeight is the height left for list rows.
func (l Layout) ListHeight() int {
	return max(l.List.Height-1, 1)
}
