package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
)

// Theme holds color constants for the TUI.
type Theme struct {
	BgColor        tcell.Color
	FgColor        tcell.Color
	BorderColor    tcell.Color
	TitleColor     tcell.Color
	MineColor      tcell.Color
	SenderColor    tcell.Color
	DimColor       tcell.Color
	ChipColor      tcell.Color
	ChipMineColor  tcell.Color
	KeyColor       tcell.Color
	FlashInfoColor tcell.Color
	FlashWarnColor tcell.Color
	FlashErrColor  tcell.Color
}

// DefaultTheme returns a dark theme in lake colors.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:        tcell.ColorBlack,
		FgColor:        tcell.ColorWhiteSmoke,
		BorderColor:    tcell.ColorDarkCyan,
		TitleColor:     tcell.ColorTurquoise,
		MineColor:      tcell.ColorTurquoise,
		SenderColor:    tcell.ColorLightSkyBlue,
		DimColor:       tcell.ColorGray,
		ChipColor:      tcell.ColorSilver,
		ChipMineColor:  tcell.ColorTurquoise,
		KeyColor:       tcell.ColorDodgerBlue,
		FlashInfoColor: tcell.ColorNavajoWhite,
		FlashWarnColor: tcell.ColorOrange,
		FlashErrColor:  tcell.ColorOrangeRed,
	}
}

// Tag returns the tview color tag for c, e.g. "[#40e0d0]".
func Tag(c tcell.Color) string {
	return fmt.Sprintf("[#%06x]", c.Hex())
}
