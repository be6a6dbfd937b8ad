package domain

// HighlightOutline is the outline drawn around the selected element.
const HighlightOutline = "2px solid #2196F3"

// Frame is what the engine asks the rendering surface to paint.
type Frame struct {
	// Seq increases with every frame delivered by a session.
	Seq uint64 `json:"seq"`

	// Markup is the full document markup. Surfaces replace, never patch.
	Markup string `json:"markup"`

	// Highlight is applied after the markup is in place. It is nil when
	// nothing is selected.
	Highlight *Highlight `json:"highlight,omitempty"`

	// HighlightOnly marks a selection change: the surface keeps its markup
	// and only moves the outline.
	HighlightOnly bool `json:"highlight_only,omitempty"`
}

// Highlight is the post-render directive targeting the selected element.
type Highlight struct {
	NodeID         string `json:"node_id"`
	Outline        string `json:"outline"`
	ScrollIntoView bool   `json:"scroll_into_view"`
}

// NoticeLevel defines the severity of a user notification.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice is a transient user-visible message (a toast).
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}
