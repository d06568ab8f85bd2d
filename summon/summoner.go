// ABOUTME: Summoner fans summon requests out across the collaborator roster
// ABOUTME: Wraps the queue with roster lookup and an injectable clock
package summon

import (
	"fmt"
	"time"

	"github.com/opspulse/opspulse/config"
)

// Summoner issues summon requests against a roster of collaborators.
type Summoner struct {
	queue  Queue
	roster []config.Collaborator
	now    func() time.Time
}

func NewSummoner(queue Queue, roster []config.Collaborator) *Summoner {
	return &Summoner{
		queue:  queue,
		roster: roster,
		now:    time.Now,
	}
}

// WithClock overrides the time source, used in tests.
func (s *Summoner) WithClock(now func() time.Time) *Summoner {
	s.now = now
	return s
}

// Summon requests data categories from one named collaborator and
// returns the queue identifier for traceability.
func (s *Summoner) Summon(collaborator string, categories []string, context, urgency string) (string, error) {
	if _, ok := s.find(collaborator); !ok {
		return "", fmt.Errorf("unknown collaborator: %s", collaborator)
	}

	req, err := NewRequest(collaborator, categories, context, urgency, s.now())
	if err != nil {
		return "", err
	}

	id, err := s.queue.Enqueue(req)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue summon for %s: %w", collaborator, err)
	}

	return id, nil
}

// SummonAll fans the same request out to every collaborator on the
// roster. A write failure for one collaborator drops that summon but
// does not stop the rest; the identifiers of successful writes are
// returned alongside the first error encountered.
func (s *Summoner) SummonAll(categories []string, context, urgency string) ([]string, error) {
	var ids []string
	var firstErr error

	for _, collab := range s.roster {
		req, err := NewRequest(collab.Name, categories, context, urgency, s.now())
		if err != nil {
			return ids, err
		}

		id, err := s.queue.Enqueue(req)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to enqueue summon for %s: %w", collab.Name, err)
			}
			continue
		}
		ids = append(ids, id)
	}

	return ids, firstErr
}

// Roster returns the configured collaborators.
func (s *Summoner) Roster() []config.Collaborator {
	return s.roster
}

func (s *Summoner) find(name string) (config.Collaborator, bool) {
	for _, c := range s.roster {
		if c.Name == name {
			return c, true
		}
	}
	return config.Collaborator{}, false
}
