package classify

import (
	"context"
	"encoding/json"
	"log/slog"

	"dmarchive/internal/domain"
)

// ReelPolicy decides what happens to reel shares.
type ReelPolicy string

const (
	ReelSkip    ReelPolicy = "skip"    // record a placeholder, download nothing
	ReelArchive ReelPolicy = "archive" // download the clip like any video
)

// Downloader persists one media asset. On success it fills ref.LocalPath and
// clears ref.RemoteURL; on failure it leaves the ref untouched so the remote
// reference survives into the archive.
type Downloader interface {
	Download(ctx context.Context, ref *domain.MediaRef) error
}

// EnrichFunc fetches the full raw representation of an item, used when the
// page payload did not resolve any album media.
type EnrichFunc func(ctx context.Context, itemID string) (json.RawMessage, error)

// Extractor turns classified items into normalized archive messages. It
// never fails: unresolvable content degrades to an explicit marker so the
// archive keeps a record that a message existed.
type Extractor struct {
	Downloads Downloader
	Enrich    EnrichFunc // optional
	Reels     ReelPolicy
	Logger    *slog.Logger
}

const (
	markerAlbumUnresolved  = "[album - could not extract media]"
	markerSharedUnresolved = "[shared album - could not extract media]"
	markerReelSkipped      = "[reel share - not downloaded]"
	markerStoryShare       = "[story share]"
	markerVoiceMessage     = "[voice message]"
	markerGIF              = "[animated media/GIF]"
)

// Extract produces exactly one Message for the item.
func (e *Extractor) Extract(ctx context.Context, it Item) domain.Message {
	msg := domain.Message{
		ID:        it.ID,
		Timestamp: it.Timestamp,
		Sender:    it.SenderID,
	}

	switch it.Kind {
	case KindText:
		msg.Type = domain.TypeText
		msg.Content.Text = it.raw.Text

	case KindReel:
		msg.Type = domain.TypeReel
		if e.Reels == ReelArchive && it.raw.Clip != nil {
			if url := it.raw.Clip.Clip.videoURL(); url != "" {
				msg.Content.Media = e.download(ctx, []domain.MediaRef{
					{Kind: domain.MediaVideo, RemoteURL: url},
				})
				return msg
			}
		}
		msg.Content.Text = markerReelSkipped

	case KindPhoto, KindVideo:
		if it.Kind == KindVideo {
			msg.Type = domain.TypeVideo
		} else {
			msg.Type = domain.TypePhoto
		}
		msg.Content.Media = e.download(ctx, singleMediaRef(&it.raw))

	case KindVisualAlbum:
		msg.Type = domain.TypeAlbum
		refs := visualMediaRefs(it.raw.VisualMedia)
		e.fillAlbum(ctx, &msg, it, refs, visualPath, markerAlbumUnresolved)

	case KindGenericShareAlbum:
		msg.Type = domain.TypeAlbum
		refs := genericShareRefs(it.raw.GenericXMA)
		e.fillAlbum(ctx, &msg, it, refs, genericPath, markerAlbumUnresolved)

	case KindCarouselShare:
		msg.Type = domain.TypeSharedAlbum
		refs := carouselRefs(it.raw.MediaShare)
		e.fillAlbum(ctx, &msg, it, refs, carouselPath, markerSharedUnresolved)

	case KindStoryShare:
		msg.Type = domain.TypeStoryShare
		msg.Content.Text = markerStoryShare
		if it.raw.StoryShare != nil && it.raw.StoryShare.Title != "" {
			msg.Content.Text = "[story share: " + it.raw.StoryShare.Title + "]"
		}

	case KindVoice:
		msg.Type = domain.TypeVoiceMessage
		msg.Content.Text = markerVoiceMessage

	case KindLink:
		msg.Type = domain.TypeLink
		msg.Content.Text = it.raw.Link.LinkContext.LinkURL
		if msg.Content.Text == "" {
			msg.Content.Text = it.raw.Link.Text
		}

	case KindGIF:
		msg.Type = domain.TypeGIF
		msg.Content.Text = markerGIF

	default:
		remoteType := it.RemoteType()
		if remoteType == "" {
			remoteType = "unknown"
		}
		msg.Type = domain.MessageType(remoteType)
		if it.raw.Placeholder != nil && it.raw.Placeholder.Message != "" {
			msg.Content.Text = "[" + it.raw.Placeholder.Message + "]"
		} else {
			msg.Content.Text = "[" + remoteType + "]"
		}
	}

	return msg
}

// extractionPath names which album assembly path to retry after enrichment.
type extractionPath int

const (
	visualPath extractionPath = iota
	genericPath
	carouselPath
)

// fillAlbum attaches the album media, retrying once via the enrichment fetch
// when the inline payload resolved nothing. Zero resolvable media is never a
// failure: the message keeps an explicit marker instead.
func (e *Extractor) fillAlbum(ctx context.Context, msg *domain.Message, it Item, refs []domain.MediaRef, path extractionPath, marker string) {
	if len(refs) == 0 && e.Enrich != nil {
		refs = e.enrichAlbum(ctx, it.ID, path)
	}
	if len(refs) == 0 {
		e.logf("album media unresolvable", "item_id", it.ID, "remote_type", it.RemoteType())
		msg.Content.Text = marker
		return
	}
	msg.Content.Media = e.download(ctx, refs)
}

func (e *Extractor) enrichAlbum(ctx context.Context, itemID string, path extractionPath) []domain.MediaRef {
	data, err := e.Enrich(ctx, itemID)
	if err != nil {
		e.logf("enrichment fetch failed", "item_id", itemID, "err", err)
		return nil
	}
	var raw rawItem
	if err := json.Unmarshal(data, &raw); err != nil {
		e.logf("enrichment decode failed", "item_id", itemID, "err", err)
		return nil
	}
	switch path {
	case visualPath:
		return visualMediaRefs(raw.VisualMedia)
	case genericPath:
		return genericShareRefs(raw.GenericXMA)
	default:
		return carouselRefs(raw.MediaShare)
	}
}

// download runs every ref through the downloader. A failed download is
// item-local: the ref stays with its remote URL and processing continues.
func (e *Extractor) download(ctx context.Context, refs []domain.MediaRef) []domain.MediaRef {
	for i := range refs {
		if err := e.Downloads.Download(ctx, &refs[i]); err != nil {
			e.logf("media download failed", "url", refs[i].RemoteURL, "err", err)
		}
	}
	return refs
}

func (e *Extractor) logf(msg string, args ...any) {
	if e.Logger != nil {
		e.Logger.Warn(msg, args...)
	}
}

// singleMediaRef resolves the one asset of a photo/video item, wherever the
// service put it.
func singleMediaRef(raw *rawItem) []domain.MediaRef {
	media := raw.Media
	if media == nil && len(raw.VisualMedia) == 1 {
		media = &raw.VisualMedia[0].Media
	}
	if media == nil && raw.MediaShare != nil {
		media = &rawMedia{
			ImageVersions2: raw.MediaShare.ImageVersions2,
			VideoVersions:  raw.MediaShare.VideoVersions,
		}
	}
	if url := media.videoURL(); url != "" {
		return []domain.MediaRef{{Kind: domain.MediaVideo, RemoteURL: url}}
	}
	if url := media.imageURL(); url != "" {
		return []domain.MediaRef{{Kind: domain.MediaImage, RemoteURL: url}}
	}
	return nil
}

// visualMediaRefs assembles an album from the per-item visual media array,
// preserving the original order.
func visualMediaRefs(items flexVisualMedia) []domain.MediaRef {
	var refs []domain.MediaRef
	for i := range items {
		if url := items[i].Media.videoURL(); url != "" {
			refs = append(refs, domain.MediaRef{Kind: domain.MediaVideo, RemoteURL: url})
		} else if url := items[i].Media.imageURL(); url != "" {
			refs = append(refs, domain.MediaRef{Kind: domain.MediaImage, RemoteURL: url})
		}
	}
	return refs
}

// genericShareRefs assembles an album from cross-app share previews.
func genericShareRefs(xmas []rawXMA) []domain.MediaRef {
	var refs []domain.MediaRef
	for _, xma := range xmas {
		if xma.PreviewURLInfo == nil || xma.PreviewURLInfo.URL == "" {
			continue
		}
		refs = append(refs, domain.MediaRef{Kind: domain.MediaImage, RemoteURL: xma.PreviewURLInfo.URL})
	}
	return refs
}

// carouselRefs assembles a shared album from a feed-post carousel.
func carouselRefs(share *rawMediaShare) []domain.MediaRef {
	if share == nil {
		return nil
	}
	var refs []domain.MediaRef
	for i := range share.CarouselMedia {
		m := &share.CarouselMedia[i]
		if url := m.videoURL(); url != "" {
			refs = append(refs, domain.MediaRef{Kind: domain.MediaVideo, RemoteURL: url})
		} else if url := m.imageURL(); url != "" {
			refs = append(refs, domain.MediaRef{Kind: domain.MediaImage, RemoteURL: url})
		}
	}
	return refs
}
