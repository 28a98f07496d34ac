package rekordbox

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"cratedig/internal/core"
)

// deadlineCheckEvery bounds how often the parser looks at the clock; the
// deadline only needs second-level precision.
const deadlineCheckEvery = 1024

// Loader parses collection files and caches the resulting libraries, keyed
// by file identity, so repeated requests against the same export skip the
// XML pass.
type Loader struct {
	cfg   core.RekordboxConfig
	cache *lru.LRU[string, *Library]
	log   *zap.Logger
}

func NewLoader(cfg core.RekordboxConfig, log *zap.Logger) *Loader {
	return &Loader{
		cfg:   cfg,
		cache: lru.NewLRU[string, *Library](cfg.CacheSize, nil, cfg.CacheTTL),
		log:   log.Named("rekordbox"),
	}
}

// LoadFile parses the collection at path. The cache key is derived from the
// file's size and mtime, so an export overwritten in place invalidates
// naturally.
func (l *Loader) LoadFile(path string) (*Library, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat collection: %w", err)
	}
	key := fmt.Sprintf("rb:%d:%d_%d", l.cfg.CacheVersion, st.Size(), st.ModTime().UnixNano())
	if lib, ok := l.cache.Get(key); ok {
		l.log.Debug("library cache hit", zap.String("key", key))
		return lib, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}
	defer f.Close()

	lib, err := l.Parse(f, st.Size())
	if err != nil {
		return nil, err
	}
	l.cache.Add(key, lib)
	return lib, nil
}

// Parse reads a collection XML stream into an indexed library. declaredSize
// may be negative when unknown (uploads); the byte ceiling is enforced on
// the stream either way.
func (l *Loader) Parse(r io.Reader, declaredSize int64) (*Library, error) {
	if declaredSize > l.cfg.MaxXMLBytes {
		return nil, &core.LimitError{
			Resource: "rekordbox_xml_bytes",
			Msg:      fmt.Sprintf("collection is %d bytes, limit is %d", declaredSize, l.cfg.MaxXMLBytes),
		}
	}

	// One byte past the ceiling distinguishes "exactly at the limit" from
	// "over it" without buffering the whole stream.
	limited := &countingReader{r: io.LimitReader(r, l.cfg.MaxXMLBytes+1)}
	dec := xml.NewDecoder(limited)
	deadline := time.Now().Add(l.cfg.ParseTimeout)

	started := time.Now()
	var (
		entries       []Entry
		inCollection  bool
		sawCollection bool
		tokens        int
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if limited.n > l.cfg.MaxXMLBytes {
				return nil, &core.LimitError{
					Resource: "rekordbox_xml_bytes",
					Msg:      fmt.Sprintf("collection exceeds %d bytes", l.cfg.MaxXMLBytes),
				}
			}
			return nil, &core.StructuralError{Msg: "malformed collection XML: " + err.Error()}
		}

		tokens++
		if tokens%deadlineCheckEvery == 0 && time.Now().After(deadline) {
			return nil, &core.LimitError{
				Resource: "rekordbox_parse_time",
				Msg:      fmt.Sprintf("collection parse exceeded %s", l.cfg.ParseTimeout),
			}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "COLLECTION":
				inCollection = true
				sawCollection = true
			case "TRACK":
				if !inCollection {
					continue
				}
				entries = append(entries, entryFromAttrs(t.Attr))
				dec.Skip()
			}
		case xml.EndElement:
			if t.Name.Local == "COLLECTION" {
				inCollection = false
			}
		}
	}

	if limited.n > l.cfg.MaxXMLBytes {
		return nil, &core.LimitError{
			Resource: "rekordbox_xml_bytes",
			Msg:      fmt.Sprintf("collection exceeds %d bytes", l.cfg.MaxXMLBytes),
		}
	}
	if !sawCollection {
		return nil, &core.StructuralError{Msg: "no COLLECTION element found; is this a Rekordbox export?"}
	}

	l.log.Info("collection parsed",
		zap.Int("tracks", len(entries)),
		zap.Duration("took", time.Since(started)),
	)
	return newLibrary(entries), nil
}

func entryFromAttrs(attrs []xml.Attr) Entry {
	var title, artist, album, isrc string
	for _, a := range attrs {
		switch a.Name.Local {
		case "Name":
			title = a.Value
		case "Artist":
			artist = a.Value
		case "Album":
			album = a.Value
		case "ISRC":
			isrc = a.Value
		}
	}
	return newEntry(title, artist, album, isrc)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
