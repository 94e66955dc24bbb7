package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

func shape(m *tele.ReplyMarkup) []int {
	var out []int
	for _, row := range m.InlineKeyboard {
		out = append(out, len(row))
	}
	return out
}

func btn(text, data string) Button { return Button{Text: text, Unique: "flow", Data: data} }

func TestGrid(t *testing.T) {
	m := Grid(2, btn("a", "1"), btn("b", "2"), btn("c", "3"))
	assert.Equal(t, []int{2, 1}, shape(m))
	assert.Equal(t, []int{1, 1}, shape(Grid(0, btn("a", "1"), btn("b", "2"))))
}

func TestFitPacksShortLabels(t *testing.T) {
	m := Fit(3,
		btn("Daily", "daily"),
		btn("Hourly", "hourly"),
		btn("Latest records", "last"),
		btn("Records on a specific date", "date"),
		btn("Range", "range"),
	)
	assert.Equal(t, []int{3, 1, 1}, shape(m))

	first := m.InlineKeyboard[0][0]
	assert.Equal(t, "Daily", first.Text)
	assert.Equal(t, "flow", first.Unique)
	assert.Equal(t, "daily", first.Data)
}

func TestFitKeepsOverlongLabelAlone(t *testing.T) {
	long := "A label that is far wider than one row allows"
	m := Fit(2, btn(long, "x"), btn("y", "y"))
	require.Len(t, m.InlineKeyboard, 2)
	assert.Equal(t, long, m.InlineKeyboard[0][0].Text)
}

func TestRowsSkipsEmpty(t *testing.T) {
	m := Rows(nil, []Button{btn("a", "1")})
	assert.Equal(t, []int{1}, shape(m))
}
