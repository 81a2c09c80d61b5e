package widget

// Alignment flags, matching the values toolkits commonly use so they can
// be combined with | in markup.
const (
	AlignLeft    = 0x0001
	AlignRight   = 0x0002
	AlignHCenter = 0x0004
	AlignJustify = 0x0008
	AlignTop     = 0x0020
	AlignBottom  = 0x0040
	AlignVCenter = 0x0080
	AlignCenter  = AlignHCenter | AlignVCenter
)

// Constants returns the names markup expressions can use without a data
// binding, such as Qt.AlignRight or VBox.
func Constants() map[string]any {
	return map[string]any{
		"Qt": map[string]any{
			"AlignLeft":    AlignLeft,
			"AlignRight":   AlignRight,
			"AlignHCenter": AlignHCenter,
			"AlignJustify": AlignJustify,
			"AlignTop":     AlignTop,
			"AlignBottom":  AlignBottom,
			"AlignVCenter": AlignVCenter,
			"AlignCenter":  AlignCenter,
			"LeftButton":   LeftButton,
			"RightButton":  RightButton,
			"MiddleButton": MiddleButton,
		},
		"VBox": VBox,
		"HBox": HBox,
		"Grid": Grid,
	}
}
