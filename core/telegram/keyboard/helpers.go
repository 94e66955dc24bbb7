// Package keyboard lays out inline keyboards.
package keyboard

import (
	"unicode/utf8"

	tele "gopkg.in/telebot.v4"
)

// RowRunes caps the total label length of a packed row so that labels are
// not clipped on narrow screens.
const RowRunes = 28

// Button is one inline button. Pressing it sends "\f<Unique>|<Data>".
type Button struct {
	Text   string
	Unique string
	Data   string
}

// Rows renders rows exactly as given.
func Rows(rows ...[]Button) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.InlineKeyboard = make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		line := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			line = append(line, *markup.Data(b.Text, b.Unique, b.Data).Inline())
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, line)
	}
	return markup
}

// Grid places perRow buttons on each row.
func Grid(perRow int, buttons ...Button) *tele.ReplyMarkup {
	perRow = max(perRow, 1)
	rows := make([][]Button, 0, (len(buttons)+perRow-1)/perRow)
	for i := 0; i < len(buttons); i += perRow {
		rows = append(rows, buttons[i:min(i+perRow, len(buttons))])
	}
	return Rows(rows...)
}

// Fit packs buttons left to right, opening a new row once a row holds
// perRow buttons or its labels would exceed RowRunes.
func Fit(perRow int, buttons ...Button) *tele.ReplyMarkup {
	perRow = max(perRow, 1)
	var rows [][]Button
	var row []Button
	width := 0
	for _, b := range buttons {
		w := utf8.RuneCountInString(b.Text)
		if len(row) > 0 && (len(row) == perRow || width+w > RowRunes) {
			rows = append(rows, row)
			row, width = nil, 0
		}
		row = append(row, b)
		width += w
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return Rows(rows...)
}
