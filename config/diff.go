package config

import "reflect"

// diffEvent names the top-level struct fields that differ between old and
// new. Non-struct values produce an event without keys.
func diffEvent(old, new any) Event {
	evt := Event{OldConfig: old, NewConfig: new}
	if old == nil || new == nil {
		return evt
	}
	ov := reflect.Indirect(reflect.ValueOf(old))
	nv := reflect.Indirect(reflect.ValueOf(new))
	if ov.Kind() != reflect.Struct || ov.Type() != nv.Type() {
		return evt
	}
	for i := range ov.NumField() {
		if !reflect.DeepEqual(ov.Field(i).Interface(), nv.Field(i).Interface()) {
			evt.ChangedKeys = append(evt.ChangedKeys, ov.Type().Field(i).Name)
		}
	}
	return evt
}
