package models

// Origin records how an image entry entered the session
type Origin string

const (
	OriginUpload Origin = "upload"
	OriginCamera Origin = "camera"
)

// MaxCameraShots is the length of one auto-capture batch and the ceiling of the capture count
const MaxCameraShots = 4

// File is a live, in-memory image owned by exactly one entry
type File struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// Size returns the number of bytes held by the file
func (f *File) Size() int {
	if f == nil {
		return 0
	}
	return len(f.Data)
}

// Suggestion is a canned prompt phrase the user can toggle on and off
type Suggestion struct {
	Icon string `json:"icon" yaml:"icon"`
	Text string `json:"text" yaml:"text"`
}

// DefaultSuggestions are offered when the configuration does not list any
var DefaultSuggestions = []Suggestion{
	{Icon: "👍", Text: "Rate my outfit"},
	{Icon: "💍", Text: "For wedding"},
	{Icon: "🥾", Text: "For trek"},
	{Icon: "👕", Text: "Casual/Comfort"},
	{Icon: "💘", Text: "Dating"},
}
