package keyboard

import "testing"

func TestChunk(t *testing.T) {
	btns := []InlineBtn{{Text: "a"}, {Text: "b"}, {Text: "c"}, {Text: "d"}, {Text: "e"}}
	cases := []struct {
		n    int
		want []int
	}{
		{0, []int{1, 1, 1, 1, 1}},
		{2, []int{2, 2, 1}},
		{5, []int{5}},
		{8, []int{5}},
	}
	for _, tc := range cases {
		rows := Chunk(btns, tc.n)
		if len(rows) != len(tc.want) {
			t.Fatalf("n=%d: got %d rows, want %d", tc.n, len(rows), len(tc.want))
		}
		for i, r := range rows {
			if len(r) != tc.want[i] {
				t.Fatalf("n=%d row %d: got %d buttons, want %d", tc.n, i, len(r), tc.want[i])
			}
		}
	}
}

func TestInlineButtonsRows(t *testing.T) {
	m := InlineButtonsRows(
		[]InlineBtn{{Text: "Skip", Unique: "order_skip"}, {Text: "Back", Unique: "order_back"}},
		nil,
		[]InlineBtn{{Text: "Edit", Unique: "order_edit", Data: "sender_name"}},
	)
	if len(m.InlineKeyboard) != 2 {
		t.Fatalf("expected empty row to be dropped, got %d rows", len(m.InlineKeyboard))
	}
	if got := m.InlineKeyboard[0][1].Unique; got != "order_back" {
		t.Fatalf("unique = %q", got)
	}
	if got := m.InlineKeyboard[1][0].Data; got != "sender_name" {
		t.Fatalf("data = %q", got)
	}
}
