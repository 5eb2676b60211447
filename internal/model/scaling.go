package model

// ScalingEvent is one "proc@count:size" entry of a formation scaling line.
type ScalingEvent struct {
	Proc  string `json:"proc" msgpack:"proc"`
	Count uint16 `json:"count" msgpack:"count"`
	Size  string `json:"size" msgpack:"size"`
}
