package store

import (
	"math"

	"github.com/KaramelBytes/studydeck-cli/internal/utils"
)

// Snapshot is a point-in-time copy of every cached collection.
type Snapshot struct {
	Documents     map[string]Document     `json:"documents"`
	ChatHistory   map[string][]ChatTurn   `json:"chatHistory"`
	FlashcardSets map[string]FlashcardSet `json:"flashcardSets"`
	StudyNotes    map[string]StudyNote    `json:"studyNotes"`
	Stats         Stats                   `json:"stats"`
}

// Export returns a deep copy of the cache. Later mutations do not show
// through it.
func (s *Store) Export() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Documents:     make(map[string]Document, len(s.documents)),
		ChatHistory:   make(map[string][]ChatTurn, len(s.chat)),
		FlashcardSets: make(map[string]FlashcardSet, len(s.sets)),
		StudyNotes:    make(map[string]StudyNote, len(s.notes)),
		Stats:         s.stats,
	}
	for k, v := range s.documents {
		snap.Documents[k] = v
	}
	for k, v := range s.chat {
		snap.ChatHistory[k] = append([]ChatTurn(nil), v...)
	}
	for k, v := range s.sets {
		snap.FlashcardSets[k] = v.clone()
	}
	for k, v := range s.notes {
		snap.StudyNotes[k] = v
	}
	return snap
}

// WriteJSON writes the snapshot as indented JSON, readable by the browser
// export of the same data.
func (s Snapshot) WriteJSON(path string) error {
	return utils.WriteJSON(path, s)
}

// Progress is the study time summary shown in the stats panel.
type Progress struct {
	Hours   int     `json:"hours"`
	Minutes int     `json:"minutes"`
	Percent float64 `json:"percent"`
}

// Progress derives whole hours, leftover minutes and the share of the
// weekly goal reached, capped at 100.
func (s *Store) Progress(goalHours float64) Progress {
	minutes := s.Stats().StudyTimeMinutes
	p := Progress{Hours: minutes / 60, Minutes: minutes % 60}
	if goalHours > 0 {
		p.Percent = math.Min(100, float64(p.Hours)/goalHours*100)
	}
	return p
}
