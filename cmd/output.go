package cmd

import (
	"bytes"
	"io"

	"github.com/bnema/powertrack-cli/internal/adapters/jsoncodec"
	"github.com/bnema/powertrack-cli/internal/domain"
)

func writeJSON(w io.Writer, v any) error {
	data, err := jsoncodec.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// eventRecord is the JSON line written for every non-data emission.
type eventRecord struct {
	Channel    string  `json:"channel"`
	Value      any     `json:"value,omitempty"`
	ActivityID *string `json:"activity_id,omitempty"`
	UserID     *string `json:"user_id,omitempty"`
	Cursor     *string `json:"cursor,omitempty"`
	IsLast     *bool   `json:"is_last,omitempty"`
	Error      string  `json:"error,omitempty"`
}

var activityCodec = jsoncodec.ActivityCodec{}

// writeEvent writes one JSON line. Data events carrying wire bytes are passed
// through untouched.
func writeEvent(w io.Writer, ev domain.Event) error {
	if ev.Channel.Kind == domain.ChannelData && len(ev.Activity.Raw) > 0 {
		_, err := w.Write(append(bytes.TrimSpace(ev.Activity.Raw), '\n'))
		return err
	}

	record := eventRecord{
		Channel: ev.Channel.String(),
		Value:   ev.Activity.Value,
		Cursor:  ev.Cursor,
	}
	switch ev.Channel.Kind {
	case domain.ChannelEvent, domain.ChannelProduct, domain.ChannelStreamType:
		record.ActivityID = ev.Identity.ActivityID
		record.UserID = ev.Identity.UserID
	case domain.ChannelPageIsLast:
		isLast := ev.IsLast
		record.IsLast = &isLast
	}
	if ev.Err != nil {
		record.Error = ev.Err.Error()
	}

	data, err := activityCodec.Marshal(record)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
