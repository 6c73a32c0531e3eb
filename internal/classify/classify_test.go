package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"dmarchive/internal/domain"
)

// fakeDownloader records requested URLs and marks every ref as saved.
type fakeDownloader struct {
	urls []string
	fail bool
}

func (f *fakeDownloader) Download(_ context.Context, ref *domain.MediaRef) error {
	f.urls = append(f.urls, ref.RemoteURL)
	if f.fail {
		return fmt.Errorf("network down")
	}
	ref.LocalPath = fmt.Sprintf("photos/file_%d.bin", len(f.urls))
	ref.RemoteURL = ""
	return nil
}

func newExtractor(d Downloader) *Extractor {
	return &Extractor{Downloads: d, Reels: ReelSkip}
}

func mustParse(t *testing.T, raw string) Item {
	t.Helper()
	it, err := Parse(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return it
}

func TestParse_Text(t *testing.T) {
	it := mustParse(t, `{"item_id":"1","user_id":42,"timestamp":1700000000000000,"item_type":"text","text":"hello"}`)
	if it.Kind != KindText {
		t.Fatalf("expected KindText, got %v", it.Kind)
	}
	if it.SenderID != "user_42" {
		t.Errorf("sender: %q", it.SenderID)
	}
	want := time.UnixMicro(1700000000000000).UTC()
	if !it.Timestamp.Equal(want) {
		t.Errorf("timestamp: %s, want %s", it.Timestamp, want)
	}
}

func TestParse_MissingID(t *testing.T) {
	if _, err := Parse(json.RawMessage(`{"user_id":1}`)); err == nil {
		t.Fatal("expected error for missing item_id")
	}
}

func TestParse_TextBeatsEverything(t *testing.T) {
	// Text present alongside media: text wins.
	it := mustParse(t, `{"item_id":"1","item_type":"media","text":"caption",
		"media":{"image_versions2":{"candidates":[{"url":"http://x/a.jpg"}]}}}`)
	if it.Kind != KindText {
		t.Fatalf("text payload must take priority, got %v", it.Kind)
	}
}

func TestParse_ReelBeatsMedia(t *testing.T) {
	it := mustParse(t, `{"item_id":"1","item_type":"clip",
		"clip":{"clip":{"video_versions":[{"url":"http://x/r.mp4"}]}},
		"media":{"image_versions2":{"candidates":[{"url":"http://x/a.jpg"}]}}}`)
	if it.Kind != KindReel {
		t.Fatalf("reel marker must take priority over media, got %v", it.Kind)
	}
}

func TestParse_SinglePhotoAndVideo(t *testing.T) {
	photo := mustParse(t, `{"item_id":"1","item_type":"media",
		"media":{"image_versions2":{"candidates":[{"url":"http://x/a.jpg"}]}}}`)
	if photo.Kind != KindPhoto {
		t.Errorf("expected photo, got %v", photo.Kind)
	}
	video := mustParse(t, `{"item_id":"2","item_type":"media",
		"media":{"video_versions":[{"url":"http://x/a.mp4"}]}}`)
	if video.Kind != KindVideo {
		t.Errorf("expected video, got %v", video.Kind)
	}
}

func TestParse_VisualMediaSingleObject(t *testing.T) {
	// visual_media arrives as a bare object for old items.
	it := mustParse(t, `{"item_id":"1","item_type":"raven_media",
		"visual_media":{"media":{"image_versions2":{"candidates":[{"url":"http://x/a.jpg"}]}}}}`)
	if it.Kind != KindPhoto {
		t.Fatalf("single visual media should classify as photo, got %v", it.Kind)
	}
}

func TestExtract_VisualAlbumThreeImages(t *testing.T) {
	raw := `{"item_id":"1","user_id":7,"timestamp":1700000000000000,"item_type":"raven_media","visual_media":[
		{"media":{"image_versions2":{"candidates":[{"url":"http://x/1.jpg"}]}}},
		{"media":{"image_versions2":{"candidates":[{"url":"http://x/2.jpg"}]}}},
		{"media":{"image_versions2":{"candidates":[{"url":"http://x/3.jpg"}]}}}]}`
	it := mustParse(t, raw)
	if it.Kind != KindVisualAlbum {
		t.Fatalf("expected visual album, got %v", it.Kind)
	}
	d := &fakeDownloader{}
	msg := newExtractor(d).Extract(context.Background(), it)
	if msg.Type != domain.TypeAlbum {
		t.Fatalf("expected album, got %s", msg.Type)
	}
	if len(msg.Content.Media) != 3 {
		t.Fatalf("expected 3 media refs, got %d", len(msg.Content.Media))
	}
	// Original order preserved.
	want := []string{"http://x/1.jpg", "http://x/2.jpg", "http://x/3.jpg"}
	for i, u := range want {
		if d.urls[i] != u {
			t.Errorf("download %d: got %q, want %q", i, d.urls[i], u)
		}
	}
}

func TestExtract_GenericShareFiveAttachments(t *testing.T) {
	raw := `{"item_id":"1","item_type":"generic_xma","generic_xma":[
		{"preview_url_info":{"url":"http://x/1.jpg"}},
		{"preview_url_info":{"url":"http://x/2.jpg"}},
		{"preview_url_info":{"url":"http://x/3.jpg"}},
		{"preview_url_info":{"url":"http://x/4.jpg"}},
		{"preview_url_info":{"url":"http://x/5.jpg"}}]}`
	it := mustParse(t, raw)
	if it.Kind != KindGenericShareAlbum {
		t.Fatalf("expected generic share album, got %v", it.Kind)
	}
	msg := newExtractor(&fakeDownloader{}).Extract(context.Background(), it)
	if msg.Type != domain.TypeAlbum {
		t.Fatalf("expected album, got %s", msg.Type)
	}
	if len(msg.Content.Media) != 5 {
		t.Fatalf("expected 5 media refs, got %d", len(msg.Content.Media))
	}
}

func TestExtract_CarouselShare(t *testing.T) {
	raw := `{"item_id":"1","item_type":"media_share","media_share":{"carousel_media":[
		{"image_versions2":{"candidates":[{"url":"http://x/1.jpg"}]}},
		{"image_versions2":{"candidates":[{"url":"http://x/2.jpg"}]}}]}}`
	it := mustParse(t, raw)
	if it.Kind != KindCarouselShare {
		t.Fatalf("expected carousel share, got %v", it.Kind)
	}
	msg := newExtractor(&fakeDownloader{}).Extract(context.Background(), it)
	if msg.Type != domain.TypeSharedAlbum {
		t.Fatalf("expected shared_album, got %s", msg.Type)
	}
	if len(msg.Content.Media) != 2 {
		t.Fatalf("expected 2 media refs, got %d", len(msg.Content.Media))
	}
}

func TestExtract_MediaShareSingleImage(t *testing.T) {
	raw := `{"item_id":"1","item_type":"media_share","media_share":{
		"image_versions2":{"candidates":[{"url":"http://x/post.jpg"}]}}}`
	it := mustParse(t, raw)
	if it.Kind != KindPhoto {
		t.Fatalf("single-image share should be a photo, got %v", it.Kind)
	}
	msg := newExtractor(&fakeDownloader{}).Extract(context.Background(), it)
	if msg.Type != domain.TypePhoto || len(msg.Content.Media) != 1 {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestExtract_AlbumUnresolvable(t *testing.T) {
	raw := `{"item_id":"1","item_type":"generic_xma","generic_xma":[{},{},{},{}]}`
	it := mustParse(t, raw)
	msg := newExtractor(&fakeDownloader{}).Extract(context.Background(), it)
	if msg.Type != domain.TypeAlbum {
		t.Fatalf("expected album, got %s", msg.Type)
	}
	if len(msg.Content.Media) != 0 || msg.Content.Text == "" {
		t.Fatalf("expected could-not-extract marker, got %+v", msg.Content)
	}
}

func TestExtract_AlbumEnrichmentFallback(t *testing.T) {
	// Inline payload has no preview URLs; the enrichment fetch has them.
	raw := `{"item_id":"9","item_type":"generic_xma","generic_xma":[{},{},{},{}]}`
	it := mustParse(t, raw)
	enriched := `{"item_id":"9","item_type":"generic_xma","generic_xma":[
		{"preview_url_info":{"url":"http://x/1.jpg"}},
		{"preview_url_info":{"url":"http://x/2.jpg"}}]}`
	e := newExtractor(&fakeDownloader{})
	e.Enrich = func(_ context.Context, itemID string) (json.RawMessage, error) {
		if itemID != "9" {
			t.Errorf("enrich asked for wrong item: %s", itemID)
		}
		return json.RawMessage(enriched), nil
	}
	msg := e.Extract(context.Background(), it)
	if len(msg.Content.Media) != 2 {
		t.Fatalf("expected 2 refs after enrichment, got %+v", msg.Content)
	}
}

func TestExtract_ReelSkipPolicy(t *testing.T) {
	raw := `{"item_id":"1","item_type":"clip","clip":{"clip":{"video_versions":[{"url":"http://x/r.mp4"}]}}}`
	it := mustParse(t, raw)
	d := &fakeDownloader{}
	msg := newExtractor(d).Extract(context.Background(), it)
	if msg.Type != domain.TypeReel {
		t.Fatalf("expected reel, got %s", msg.Type)
	}
	if len(d.urls) != 0 {
		t.Fatalf("skip policy must not download, fetched %v", d.urls)
	}
	if msg.Content.Text == "" {
		t.Fatal("expected placeholder content")
	}
}

func TestExtract_ReelArchivePolicy(t *testing.T) {
	raw := `{"item_id":"1","item_type":"clip","clip":{"clip":{"video_versions":[{"url":"http://x/r.mp4"}]}}}`
	it := mustParse(t, raw)
	d := &fakeDownloader{}
	e := &Extractor{Downloads: d, Reels: ReelArchive}
	msg := e.Extract(context.Background(), it)
	if msg.Type != domain.TypeReel {
		t.Fatalf("expected reel, got %s", msg.Type)
	}
	if len(msg.Content.Media) != 1 || len(d.urls) != 1 {
		t.Fatalf("archive policy should download the clip: %+v", msg.Content)
	}
}

func TestExtract_DownloadFailureKeepsRemoteURL(t *testing.T) {
	raw := `{"item_id":"1","item_type":"media","media":{"image_versions2":{"candidates":[{"url":"http://x/a.jpg"}]}}}`
	it := mustParse(t, raw)
	msg := newExtractor(&fakeDownloader{fail: true}).Extract(context.Background(), it)
	if len(msg.Content.Media) != 1 {
		t.Fatalf("expected 1 ref, got %d", len(msg.Content.Media))
	}
	ref := msg.Content.Media[0]
	if ref.LocalPath != "" || ref.RemoteURL != "http://x/a.jpg" {
		t.Fatalf("failed download should keep the remote reference: %+v", ref)
	}
}

func TestExtract_FallbackTypes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		typ  domain.MessageType
	}{
		{"story", `{"item_id":"1","item_type":"story_share","story_share":{"title":"a story"}}`, domain.TypeStoryShare},
		{"voice", `{"item_id":"2","item_type":"voice_media","voice_media":{"media":{"audio":{"audio_src":"http://x/v.m4a"}}}}`, domain.TypeVoiceMessage},
		{"link", `{"item_id":"3","item_type":"link","link":{"text":"see this","link_context":{"link_url":"https://example.com"}}}`, domain.TypeLink},
		{"gif", `{"item_id":"4","item_type":"animated_media","animated_media":{"images":{"fixed_height":{"url":"http://x/g.gif"}}}}`, domain.TypeGIF},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			it := mustParse(t, tc.raw)
			msg := newExtractor(&fakeDownloader{}).Extract(context.Background(), it)
			if msg.Type != tc.typ {
				t.Fatalf("expected %s, got %s", tc.typ, msg.Type)
			}
		})
	}
}

func TestExtract_LinkContent(t *testing.T) {
	it := mustParse(t, `{"item_id":"3","item_type":"link","link":{"text":"see","link_context":{"link_url":"https://example.com"}}}`)
	msg := newExtractor(&fakeDownloader{}).Extract(context.Background(), it)
	if msg.Content.Text != "https://example.com" {
		t.Fatalf("expected link url as content, got %q", msg.Content.Text)
	}
}

func TestExtract_UnknownShapeKeepsRemoteType(t *testing.T) {
	it := mustParse(t, `{"item_id":"1","item_type":"action_log"}`)
	msg := newExtractor(&fakeDownloader{}).Extract(context.Background(), it)
	if string(msg.Type) != "action_log" {
		t.Fatalf("expected remote type passthrough, got %s", msg.Type)
	}
	if msg.Content.Text != "[action_log]" {
		t.Fatalf("expected diagnostic marker, got %q", msg.Content.Text)
	}
}
