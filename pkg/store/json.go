package store

import "encoding/json"

// stepKnownFields lists the JSON keys Step understands natively; everything
// else round-trips through Extra.
var stepKnownFields = map[string]bool{
	"step_id": true, "timestamp": true, "phase": true, "input": true,
	"output": true, "state_ref": true, "diff_ref": true, "status": true,
	"duration_ms": true, "replay_of": true,
}

// MarshalJSON merges the known fields with Extra so unrecognized fields
// present on decode are preserved on re-encode.
func (s Step) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	for k, v := range s.Extra {
		out[k] = v
	}
	out["step_id"] = s.StepID
	out["timestamp"] = s.Timestamp
	out["phase"] = s.Phase
	out["input"] = s.Input
	out["output"] = s.Output
	if s.StateRef != "" {
		out["state_ref"] = s.StateRef
	}
	if s.DiffRef != "" {
		out["diff_ref"] = s.DiffRef
	}
	out["status"] = s.Status
	if s.DurationMS != nil {
		out["duration_ms"] = *s.DurationMS
	}
	if s.ReplayOf != 0 {
		out["replay_of"] = s.ReplayOf
	}
	return json.Marshal(out)
}

// UnmarshalJSON populates the known fields and stashes the rest in Extra.
func (s *Step) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	type known struct {
		StepID     int            `json:"step_id"`
		Timestamp  int64          `json:"timestamp"`
		Phase      Phase          `json:"phase"`
		Input      map[string]any `json:"input"`
		Output     map[string]any `json:"output"`
		StateRef   string         `json:"state_ref,omitempty"`
		DiffRef    string         `json:"diff_ref,omitempty"`
		Status     Status         `json:"status"`
		DurationMS *int64         `json:"duration_ms,omitempty"`
		ReplayOf   int            `json:"replay_of,omitempty"`
	}
	var k known
	if err := json.Unmarshal(data, &k); err != nil {
		return err
	}

	s.StepID = k.StepID
	s.Timestamp = k.Timestamp
	s.Phase = k.Phase
	s.Input = k.Input
	s.Output = k.Output
	s.StateRef = k.StateRef
	s.DiffRef = k.DiffRef
	s.Status = k.Status
	s.DurationMS = k.DurationMS
	s.ReplayOf = k.ReplayOf

	extra := map[string]any{}
	for key, v := range raw {
		if !stepKnownFields[key] {
			extra[key] = v
		}
	}
	if len(extra) > 0 {
		s.Extra = extra
	}
	return nil
}
