package classify

import "encoding/json"

// Raw wire shapes for one direct-thread item, covering the fields the
// extractor reads. Everything else in the payload is ignored.

type rawItem struct {
	ItemID        string          `json:"item_id"`
	UserID        int64           `json:"user_id"`
	Timestamp     int64           `json:"timestamp"` // microseconds since epoch
	ItemType      string          `json:"item_type"`
	Text          string          `json:"text,omitempty"`
	Media         *rawMedia       `json:"media,omitempty"`
	VisualMedia   flexVisualMedia `json:"visual_media,omitempty"`
	MediaShare    *rawMediaShare  `json:"media_share,omitempty"`
	GenericXMA    []rawXMA        `json:"generic_xma,omitempty"`
	StoryShare    *rawStoryShare  `json:"story_share,omitempty"`
	VoiceMedia    *rawVoiceMedia  `json:"voice_media,omitempty"`
	AnimatedMedia *rawAnimated    `json:"animated_media,omitempty"`
	Link          *rawLink        `json:"link,omitempty"`
	Clip          *rawClip        `json:"clip,omitempty"`
	FelixShare    json.RawMessage `json:"felix_share,omitempty"`
	Placeholder   *rawPlaceholder `json:"placeholder,omitempty"`
}

type rawMedia struct {
	ImageVersions2 *rawImageVersions `json:"image_versions2,omitempty"`
	VideoVersions  []rawVideoVersion `json:"video_versions,omitempty"`
}

func (m *rawMedia) imageURL() string {
	if m == nil || m.ImageVersions2 == nil || len(m.ImageVersions2.Candidates) == 0 {
		return ""
	}
	return m.ImageVersions2.Candidates[0].URL
}

func (m *rawMedia) videoURL() string {
	if m == nil || len(m.VideoVersions) == 0 {
		return ""
	}
	return m.VideoVersions[0].URL
}

type rawImageVersions struct {
	Candidates []rawCandidate `json:"candidates"`
}

type rawCandidate struct {
	URL string `json:"url"`
}

type rawVideoVersion struct {
	URL string `json:"url"`
}

type rawVisualMedia struct {
	Media rawMedia `json:"media"`
}

// flexVisualMedia unmarshals from either a single object or an array; the
// service sends both shapes depending on item age.
type flexVisualMedia []rawVisualMedia

func (f *flexVisualMedia) UnmarshalJSON(data []byte) error {
	var list []rawVisualMedia
	if err := json.Unmarshal(data, &list); err == nil {
		*f = list
		return nil
	}
	var single rawVisualMedia
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*f = []rawVisualMedia{single}
	return nil
}

type rawMediaShare struct {
	CarouselMedia  []rawMedia        `json:"carousel_media,omitempty"`
	ImageVersions2 *rawImageVersions `json:"image_versions2,omitempty"`
	VideoVersions  []rawVideoVersion `json:"video_versions,omitempty"`
}

type rawXMA struct {
	PreviewURLInfo *rawPreviewURL `json:"preview_url_info,omitempty"`
	TargetURL      string         `json:"target_url,omitempty"`
}

type rawPreviewURL struct {
	URL string `json:"url"`
}

type rawStoryShare struct {
	Title   string    `json:"title,omitempty"`
	Message string    `json:"message,omitempty"`
	Media   *rawMedia `json:"media,omitempty"`
}

type rawVoiceMedia struct {
	Media *rawVoiceClip `json:"media,omitempty"`
}

type rawVoiceClip struct {
	Audio *rawAudio `json:"audio,omitempty"`
}

type rawAudio struct {
	AudioSrc string `json:"audio_src,omitempty"`
}

type rawAnimated struct {
	Images rawAnimatedImages `json:"images"`
}

type rawAnimatedImages struct {
	FixedHeight rawAnimatedRendition `json:"fixed_height"`
}

type rawAnimatedRendition struct {
	URL string `json:"url"`
}

type rawLink struct {
	Text        string         `json:"text,omitempty"`
	LinkContext rawLinkContext `json:"link_context"`
}

type rawLinkContext struct {
	LinkURL string `json:"link_url,omitempty"`
}

type rawClip struct {
	Clip *rawMedia `json:"clip,omitempty"`
}

type rawPlaceholder struct {
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}
