package handler

import (
	"bytes"
	"encoding/json"

	"tramboard/internal/board"
	"tramboard/internal/domain"
	"tramboard/internal/hub"
	"tramboard/internal/views"
)

type BoardMessage struct {
	Type    string       `json:"type"`
	Payload BoardPayload `json:"payload"`
}

// BoardPayload carries the rendered partial for the page script and the view
// it was rendered from for other clients.
type BoardPayload struct {
	HTML string     `json:"html"`
	View board.View `json:"view"`
}

func NewBoardEncoder(builder *board.Builder) hub.Encoder {
	return func(state domain.BoardState, tab domain.Direction) ([]byte, error) {
		view := builder.Build(state, tab)

		var buf bytes.Buffer
		if err := views.RenderBoardPartial(&buf, view); err != nil {
			return nil, err
		}

		return json.Marshal(BoardMessage{
			Type: "board",
			Payload: BoardPayload{
				HTML: buf.String(),
				View: view,
			},
		})
	}
}
