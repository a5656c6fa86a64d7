package phase

import "encoding/json"

// MarshalEvent serialises an Event to JSON.
func MarshalEvent(e *Event) ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEvent deserialises an Event from JSON.
func UnmarshalEvent(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// MarshalPickEvent serialises a PickEvent to JSON.
func MarshalPickEvent(p *PickEvent) ([]byte, error) {
	return json.Marshal(p)
}

// UnmarshalPickEvent deserialises a PickEvent from JSON.
func UnmarshalPickEvent(data []byte) (*PickEvent, error) {
	var p PickEvent
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
