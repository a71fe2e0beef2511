package app

import (
	"context"
	"time"
)

// MediaState is the browsing state shared by the screens of a client. It is
// owned by the caller; every method recomputes Visible from All.
type MediaState struct {
	All          []MediaRecord
	Visible      []MediaRecord
	SelectedDate *time.Time
	ActiveFace   string
}

// Refresh reloads All from the gateway for date, or for the selected date
// when date is nil, and recomputes Visible.
func (s *MediaState) Refresh(ctx context.Context, gateway *PhotoGateway, date *time.Time) {
	target := s.SelectedDate
	if date != nil {
		target = date
	}
	s.All = gateway.FetchPhotos(ctx, target)
	s.show()
}

func (s *MediaState) SelectDate(date time.Time) {
	s.SelectedDate = &date
	s.show()
}

func (s *MediaState) ClearDate() {
	s.SelectedDate = nil
	s.show()
}

// SelectFace narrows Visible to one face; an empty id goes back to the date view.
func (s *MediaState) SelectFace(faceID string) {
	s.ActiveFace = faceID
	s.show()
}

// CalendarKey is the selected date as YYYY-MM-DD, empty when none is selected.
func (s *MediaState) CalendarKey() string {
	if s.SelectedDate == nil {
		return ""
	}
	return s.SelectedDate.Format(dateParamLayout)
}

func (s *MediaState) show() {
	if s.ActiveFace != "" {
		s.Visible = FilterByFace(s.All, s.ActiveFace)
		return
	}
	s.Visible = FilterByDate(s.All, s.SelectedDate)
}
