package gui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// Dark palette, tuned for reading waveform reports.
var (
	ColorBackground      = color.NRGBA{R: 0x17, G: 0x1C, B: 0x24, A: 0xFF} // #171C24
	ColorCardBackground  = color.NRGBA{R: 0x21, G: 0x28, B: 0x33, A: 0xFF} // #212833
	ColorPrimaryAccent   = color.NRGBA{R: 0x4F, G: 0xC3, B: 0xB5, A: 0xFF} // #4FC3B5
	ColorSuccess         = color.NRGBA{R: 0x8B, G: 0xD5, B: 0x8F, A: 0xFF} // #8BD58F
	ColorWarning         = color.NRGBA{R: 0xF2, G: 0xC9, B: 0x4C, A: 0xFF} // #F2C94C
	ColorError           = color.NRGBA{R: 0xEF, G: 0x6F, B: 0x6C, A: 0xFF} // #EF6F6C
	ColorTextPrimary     = color.NRGBA{R: 0xE3, G: 0xE8, B: 0xEF, A: 0xFF} // #E3E8EF
	ColorTextSecondary   = color.NRGBA{R: 0x9A, G: 0xA5, B: 0xB4, A: 0xFF} // #9AA5B4
	ColorDisabled        = color.NRGBA{R: 0x4B, G: 0x55, B: 0x63, A: 0xFF} // #4B5563
	ColorInputBackground = color.NRGBA{R: 0x2A, G: 0x32, B: 0x3F, A: 0xFF} // #2A323F
	ColorBorder          = color.NRGBA{R: 0x3A, G: 0x44, B: 0x52, A: 0xFF} // #3A4452
	ColorHover           = color.NRGBA{R: 0x3B, G: 0xA5, B: 0x98, A: 0xFF} // #3BA598
	ColorStepInactive    = ColorBorder
	ColorStepComplete    = ColorSuccess
)

// ModernTheme is the application theme. The palette is always dark; sizes
// are slightly larger than fyne's defaults.
type ModernTheme struct{}

var _ fyne.Theme = (*ModernTheme)(nil)

var themeColors = map[fyne.ThemeColorName]color.Color{
	theme.ColorNameBackground:        ColorBackground,
	theme.ColorNameButton:            ColorPrimaryAccent,
	theme.ColorNameDisabledButton:    ColorDisabled,
	theme.ColorNameDisabled:          ColorDisabled,
	theme.ColorNameError:             ColorError,
	theme.ColorNameFocus:             ColorPrimaryAccent,
	theme.ColorNameForeground:        ColorTextPrimary,
	theme.ColorNameHeaderBackground:  ColorCardBackground,
	theme.ColorNameHover:             ColorHover,
	theme.ColorNameHyperlink:         ColorPrimaryAccent,
	theme.ColorNameInputBackground:   ColorInputBackground,
	theme.ColorNameInputBorder:       ColorBorder,
	theme.ColorNameMenuBackground:    ColorCardBackground,
	theme.ColorNameOverlayBackground: ColorCardBackground,
	theme.ColorNamePlaceHolder:       ColorTextSecondary,
	theme.ColorNamePressed:           ColorSuccess,
	theme.ColorNamePrimary:           ColorPrimaryAccent,
	theme.ColorNameScrollBar:         ColorBorder,
	theme.ColorNameSelection:         color.NRGBA{R: 0x4F, G: 0xC3, B: 0xB5, A: 0x55},
	theme.ColorNameSeparator:         ColorBorder,
	theme.ColorNameShadow:            color.NRGBA{A: 0x66},
	theme.ColorNameSuccess:           ColorSuccess,
	theme.ColorNameWarning:           ColorWarning,
}

var themeSizes = map[fyne.ThemeSizeName]float32{
	theme.SizeNamePadding:            8,
	theme.SizeNameInnerPadding:       12,
	theme.SizeNameInlineIcon:         20,
	theme.SizeNameScrollBar:          12,
	theme.SizeNameScrollBarSmall:     4,
	theme.SizeNameSeparatorThickness: 1,
	theme.SizeNameText:               14,
	theme.SizeNameHeadingText:        20,
	theme.SizeNameSubHeadingText:     16,
	theme.SizeNameCaptionText:        12,
	theme.SizeNameInputBorder:        2,
}

func (m *ModernTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	if c, ok := themeColors[name]; ok {
		return c
	}
	return theme.DefaultTheme().Color(name, theme.VariantDark)
}

func (m *ModernTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (m *ModernTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (m *ModernTheme) Size(name fyne.ThemeSizeName) float32 {
	if s, ok := themeSizes[name]; ok {
		return s
	}
	return theme.DefaultTheme().Size(name)
}
