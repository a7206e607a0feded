package scanner

import (
	"io"
	"strings"
	"time"

	"github.com/productdevbook/whichport/internal/listener"
	"github.com/sirupsen/logrus"
)

// CollectionError is returned when every candidate failed. Errors holds one
// entry per attempt, in attempt order.
type CollectionError struct {
	Errors []string
}

func (e *CollectionError) Error() string {
	if len(e.Errors) == 0 {
		return "all collection methods failed: no collection method available"
	}
	return "all collection methods failed: " + strings.Join(e.Errors, " | ")
}

// Scanner lists listening sockets by trying candidates in order
type Scanner struct {
	candidates []Candidate
	log        logrus.FieldLogger
	now        func() time.Time
}

// New returns a scanner over the given candidates. A nil logger discards.
func New(candidates []Candidate, log logrus.FieldLogger) *Scanner {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Scanner{
		candidates: candidates,
		log:        log,
		now:        time.Now,
	}
}

// NewPlatform returns a scanner using the candidates for the running OS
func NewPlatform(log logrus.FieldLogger) *Scanner {
	return New(Platform(ExecRunner{}), log)
}

// Collect runs the first candidate that works. The timestamp is taken before
// any tool is started; failed attempts are recorded in the metadata.
func (s *Scanner) Collect() ([]listener.Raw, Metadata, error) {
	meta := Metadata{
		Timestamp: s.now().Unix(),
		Errors:    []string{},
	}

	for _, c := range s.candidates {
		log := s.log.WithField("source", c.Source())
		log.Debug("collecting listeners")

		parsed, err := c.Collect()
		if err != nil {
			log.WithError(err).Debug("collection failed, trying next source")
			meta.Errors = append(meta.Errors, err.Error())
			continue
		}

		for _, skipped := range parsed.Skipped {
			log.WithField("line", skipped.Line).Debugf("skipped line: %v", skipped.Err)
		}
		log.WithField("count", len(parsed.Listeners)).Debug("collected listeners")

		meta.Source = c.Source()
		return parsed.Listeners, meta, nil
	}

	return nil, meta, &CollectionError{Errors: meta.Errors}
}
