package siteconfig

import (
	"strings"

	"roofsite-go/pkg/log"
)

// Extraction tags embedded in assistant prose.
const (
	ConfigOpenTag   = "<site_config>"
	ConfigCloseTag  = "</site_config>"
	ChangesOpenTag  = "<changes>"
	ChangesCloseTag = "</changes>"
)

var openTags = []string{ConfigOpenTag, ChangesOpenTag}

type scanState int

const (
	stateProse scanState = iota
	stateConfig
	stateChanges
)

// Update reports the extractor's view after one step.
// Config and Changes are non-nil only on the step where they were first extracted.
type Update struct {
	Display string
	Config  SiteConfig
	Changes []string
}

// Extractor incrementally separates streamed assistant text into visible prose
// and the embedded <site_config>/<changes> payloads. Each byte is scanned once;
// only a possible partial tag at the tail is held back between steps.
type Extractor struct {
	parseChanges bool

	state   scanState
	pending string
	raw     strings.Builder
	display strings.Builder
	block   strings.Builder

	config  SiteConfig
	changes []string
	// 只有第一个完整的 <site_config> 块参与提取，即使它不是合法 JSON。
	configClosed bool

	stepConfig  SiteConfig
	stepChanges []string
}

// NewExtractor returns an Extractor. When parseChanges is false (onboarding)
// <changes> blocks are still hidden from the display but never reported.
func NewExtractor(parseChanges bool) *Extractor {
	return &Extractor{parseChanges: parseChanges}
}

// Feed appends a content delta and returns the updated view.
func (e *Extractor) Feed(delta string) Update {
	e.raw.WriteString(delta)
	e.pending += delta
	e.scan(false)
	return e.step()
}

// Finish flushes held-back text at end of stream. Text that looked like the
// start of a tag is shown as prose; an unterminated block is dropped.
func (e *Extractor) Finish() Update {
	e.scan(true)
	return e.step()
}

// Raw returns everything fed so far, tags included.
func (e *Extractor) Raw() string { return e.raw.String() }

// Display returns the visible text with all extraction blocks removed.
func (e *Extractor) Display() string { return strings.TrimSpace(e.display.String()) }

// Config returns the extracted document, or nil if none has been extracted.
func (e *Extractor) Config() SiteConfig { return e.config }

// Changes returns the parsed change summary, if any.
func (e *Extractor) Changes() []string { return e.changes }

func (e *Extractor) step() Update {
	u := Update{Display: e.Display(), Config: e.stepConfig, Changes: e.stepChanges}
	e.stepConfig, e.stepChanges = nil, nil
	return u
}

func (e *Extractor) scan(final bool) {
	for {
		switch e.state {
		case stateProse:
			idx, tag := firstTag(e.pending, openTags)
			if idx >= 0 {
				e.display.WriteString(e.pending[:idx])
				e.pending = e.pending[idx+len(tag):]
				e.block.Reset()
				if tag == ConfigOpenTag {
					e.state = stateConfig
				} else {
					e.state = stateChanges
				}
				continue
			}
			keep := 0
			if !final {
				keep = partialSuffix(e.pending, openTags)
			}
			e.display.WriteString(e.pending[:len(e.pending)-keep])
			e.pending = e.pending[len(e.pending)-keep:]
			return

		case stateConfig, stateChanges:
			closeTag := ConfigCloseTag
			if e.state == stateChanges {
				closeTag = ChangesCloseTag
			}
			if idx := strings.Index(e.pending, closeTag); idx >= 0 {
				e.block.WriteString(e.pending[:idx])
				e.pending = e.pending[idx+len(closeTag):]
				e.closeBlock()
				e.state = stateProse
				continue
			}
			if final {
				e.pending = ""
				return
			}
			keep := partialSuffix(e.pending, []string{closeTag})
			e.block.WriteString(e.pending[:len(e.pending)-keep])
			e.pending = e.pending[len(e.pending)-keep:]
			return
		}
	}
}

func (e *Extractor) closeBlock() {
	body := e.block.String()
	e.block.Reset()

	if e.state == stateChanges {
		if !e.parseChanges || e.changes != nil {
			return
		}
		if changes := ParseChanges(body); len(changes) > 0 {
			e.changes = changes
			e.stepChanges = changes
		}
		return
	}

	if e.configClosed {
		return
	}
	e.configClosed = true
	cfg, err := Parse([]byte(stripFence(body)))
	if err != nil {
		log.Warnw("site_config 块不是合法 JSON，跳过本次提取", "error", err)
		return
	}
	e.config = cfg
	e.stepConfig = cfg
}

// firstTag returns the earliest occurrence of any tag in s.
func firstTag(s string, tags []string) (int, string) {
	best, bestTag := -1, ""
	for _, t := range tags {
		if i := strings.Index(s, t); i >= 0 && (best < 0 || i < best) {
			best, bestTag = i, t
		}
	}
	return best, bestTag
}

// partialSuffix returns the length of the longest suffix of s that is a proper
// prefix of one of tags.
func partialSuffix(s string, tags []string) int {
	longest := 0
	for _, t := range tags {
		for k := len(t) - 1; k > longest; k-- {
			if strings.HasSuffix(s, t[:k]) {
				longest = k
				break
			}
		}
	}
	return longest
}

// stripFence removes a markdown code fence the model sometimes wraps around the JSON.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
