package app

import (
	"sort"
	"time"
)

// DayBounds returns the first and last millisecond of date's calendar day in
// date's location.
func DayBounds(date time.Time) (int64, int64) {
	y, m, d := date.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, date.Location())
	end := time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), date.Location())
	return start.UnixMilli(), end.UnixMilli()
}

// SortNewest returns a copy of list ordered by CreationDate, newest first.
func SortNewest(list []MediaRecord) []MediaRecord {
	out := make([]MediaRecord, len(list))
	copy(out, list)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreationDate > out[j].CreationDate
	})
	return out
}

// FilterByDate repairs stored timestamps and returns the records created on
// date's calendar day, newest first. A nil date keeps every record.
func FilterByDate(list []MediaRecord, date *time.Time) []MediaRecord {
	repaired := make([]MediaRecord, 0, len(list))
	var start, end int64
	if date != nil {
		start, end = DayBounds(*date)
	}
	for _, m := range list {
		m.CreationDate = RepairStored(m.CreationDate)
		if date != nil && (m.CreationDate < start || m.CreationDate > end) {
			continue
		}
		repaired = append(repaired, m)
	}
	return SortNewest(repaired)
}

// FilterByFace selects the records tagged with faceID. It applies no date
// boundary.
func FilterByFace(list []MediaRecord, faceID string) []MediaRecord {
	matched := make([]MediaRecord, 0)
	for _, m := range list {
		if m.HasFace(faceID) {
			matched = append(matched, m)
		}
	}
	return FilterByDate(matched, nil)
}

// PhotoTime resolves when a backend photo was taken: selected date, then
// upload timestamp, then creation date. It reports false when none is usable.
func PhotoTime(p PhotoRecord) (int64, bool) {
	if p.SelectedDate != nil {
		if t, ok := ParseISO(*p.SelectedDate); ok && t.UnixMilli() != 0 {
			return t.UnixMilli(), true
		}
	}
	if p.Timestamp != 0 {
		return p.Timestamp, true
	}
	if t, ok := ParseISO(p.CreatedAt); ok && t.UnixMilli() != 0 {
		return t.UnixMilli(), true
	}
	return 0, false
}

// FilterPhotosByDate keeps the index entries whose resolved time falls on
// date's calendar day. Stored order is kept.
func FilterPhotosByDate(records []PhotoRecord, date *time.Time) []PhotoRecord {
	if date == nil {
		return records
	}
	start, end := DayBounds(*date)
	out := make([]PhotoRecord, 0)
	for _, p := range records {
		ts, ok := PhotoTime(p)
		if !ok {
			continue
		}
		if ts >= start && ts <= end {
			out = append(out, p)
		}
	}
	return out
}
