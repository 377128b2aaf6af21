package internal

// Snapshot is a read-only copy of the chat session state handed to presentation code
type Snapshot struct {
	SessionID   string            `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	Connection  ConnectionState   `json:"-" yaml:"-"`
	Transcript  []TranscriptEntry `json:"transcript" yaml:"transcript"`
	Results     []TabularResult   `json:"results" yaml:"results"`
	Suggestions []ChartSuggestion `json:"suggestions" yaml:"suggestions"`
	Processing  bool              `json:"processing" yaml:"processing"`
	Status      string            `json:"status,omitempty" yaml:"status,omitempty"`
}

// Connected reports whether a message can be sent right now
func (s Snapshot) Connected() bool {
	return s.Connection == ConnectionOpen && s.SessionID != ""
}

// EntriesByRole returns the transcript entries with the given role, in order
func (s Snapshot) EntriesByRole(role Role) []TranscriptEntry {
	var out []TranscriptEntry
	for _, e := range s.Transcript {
		if e.Role == role {
			out = append(out, e)
		}
	}
	return out
}

// LastEntry returns the most recent transcript entry
func (s Snapshot) LastEntry() (TranscriptEntry, bool) {
	if len(s.Transcript) == 0 {
		return TranscriptEntry{}, false
	}
	return s.Transcript[len(s.Transcript)-1], true
}
