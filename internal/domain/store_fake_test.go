package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// fakeClock pins the engine to a deterministic instant.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

// tokenStub mints predictable verification tokens. Verify accepts anything
// the stub could have minted and rejects the rest.
type tokenStub struct{}

func (tokenStub) Issue(bookingID string) (string, error) {
	return "tok-" + bookingID, nil
}

func (tokenStub) Verify(token string) (string, error) {
	id, ok := strings.CutPrefix(token, "tok-")
	if !ok {
		return "", errors.New("invalid verification token")
	}
	return id, nil
}

type fakeState struct {
	sessions      map[string]*Session
	memberships   map[string]*Membership
	bookings      map[string]*Booking
	venues        map[string]*Venue
	attendance    []AttendanceLogEntry
	notifications []Notification
}

// fakeStore is an in-memory Store with real transaction semantics: each InTx
// works on a deep copy of the state and the copy replaces the committed state
// only when fn returns nil.
type fakeStore struct {
	state        fakeState
	tokenLookups int
}

func newFakeStore() *fakeStore {
	return &fakeStore{state: fakeState{
		sessions:    map[string]*Session{},
		memberships: map[string]*Membership{},
		bookings:    map[string]*Booking{},
		venues:      map[string]*Venue{},
	}}
}

func (s *fakeStore) addSession(sess Session) {
	s.state.sessions[sess.ID] = &sess
}

func (s *fakeStore) addMembership(m Membership) {
	s.state.memberships[m.MemberID] = &m
}

func (s *fakeStore) addVenue(v Venue) {
	s.state.venues[v.ID] = &v
}

func (s *fakeStore) addBooking(b Booking) {
	s.state.bookings[b.ID] = &b
}

func (s *fakeStore) InTx(ctx context.Context, tenantID string, fn func(ctx context.Context, tx Tx) error) error {
	staged := s.state.clone()
	tx := &fakeTx{state: staged, store: s, tenantID: tenantID}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.state = *staged
	return nil
}

func (st fakeState) clone() *fakeState {
	out := fakeState{
		sessions:      map[string]*Session{},
		memberships:   map[string]*Membership{},
		bookings:      map[string]*Booking{},
		venues:        map[string]*Venue{},
		attendance:    append([]AttendanceLogEntry(nil), st.attendance...),
		notifications: append([]Notification(nil), st.notifications...),
	}
	for id, s := range st.sessions {
		c := *s
		out.sessions[id] = &c
	}
	for id, m := range st.memberships {
		c := *m
		out.memberships[id] = &c
	}
	for id, b := range st.bookings {
		c := *b
		out.bookings[id] = &c
	}
	for id, v := range st.venues {
		c := *v
		out.venues[id] = &c
	}
	return &out
}

type fakeTx struct {
	state    *fakeState
	store    *fakeStore
	tenantID string
}

func (t *fakeTx) GetSession(_ context.Context, sessionID string) (*Session, error) {
	s, ok := t.state.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	c := *s
	return &c, nil
}

func (t *fakeTx) ReserveSeat(_ context.Context, sessionID string) (bool, error) {
	s, ok := t.state.sessions[sessionID]
	if !ok {
		return false, fmt.Errorf("unknown session %s", sessionID)
	}
	if s.EnrolledCount >= s.Capacity {
		return false, nil
	}
	s.EnrolledCount++
	return true, nil
}

func (t *fakeTx) ReleaseSeat(_ context.Context, sessionID string) error {
	s, ok := t.state.sessions[sessionID]
	if !ok {
		return fmt.Errorf("unknown session %s", sessionID)
	}
	if s.EnrolledCount == 0 {
		return fmt.Errorf("enrolled count underflow for session %s", sessionID)
	}
	s.EnrolledCount--
	return nil
}

func (t *fakeTx) ActiveMembership(_ context.Context, memberID string) (*Membership, error) {
	m, ok := t.state.memberships[memberID]
	if !ok || !m.Active {
		return nil, nil
	}
	c := *m
	return &c, nil
}

func (t *fakeTx) SaveMembership(_ context.Context, m *Membership) error {
	c := *m
	t.state.memberships[m.MemberID] = &c
	return nil
}

func (t *fakeTx) FindBooking(_ context.Context, memberID, sessionID string) (*Booking, error) {
	for _, b := range t.state.bookings {
		if b.MemberID == memberID && b.SessionID == sessionID {
			c := *b
			return &c, nil
		}
	}
	return nil, nil
}

func (t *fakeTx) GetBookingForMember(_ context.Context, bookingID, memberID string) (*Booking, error) {
	b, ok := t.state.bookings[bookingID]
	if !ok || b.MemberID != memberID {
		return nil, nil
	}
	c := *b
	return &c, nil
}

func (t *fakeTx) GetConfirmedBooking(_ context.Context, bookingID string) (*Booking, error) {
	b, ok := t.state.bookings[bookingID]
	if !ok || b.Status != StatusConfirmed {
		return nil, nil
	}
	c := *b
	return &c, nil
}

func (t *fakeTx) FindConfirmedByToken(_ context.Context, token string) (*Booking, error) {
	t.store.tokenLookups++
	for _, b := range t.state.bookings {
		if b.Status == StatusConfirmed && b.QRToken == token {
			c := *b
			return &c, nil
		}
	}
	return nil, nil
}

func (t *fakeTx) CreateOrReactivateBooking(_ context.Context, in *Booking) (*Booking, error) {
	for _, b := range t.state.bookings {
		if b.MemberID == in.MemberID && b.SessionID == in.SessionID {
			if b.Status != StatusCancelled {
				return nil, ErrAlreadyBooked
			}
			b.Status = in.Status
			b.QRToken = in.QRToken
			b.BookedAt = in.BookedAt
			b.UpdatedAt = in.UpdatedAt
			c := *b
			return &c, nil
		}
	}
	c := *in
	t.state.bookings[in.ID] = &c
	out := c
	return &out, nil
}

func (t *fakeTx) SaveBooking(_ context.Context, b *Booking) error {
	c := *b
	t.state.bookings[b.ID] = &c
	return nil
}

func (t *fakeTx) WaitlistedInOrder(_ context.Context, sessionID string) ([]*Booking, error) {
	var queue []*Booking
	for _, b := range t.state.bookings {
		if b.SessionID == sessionID && b.Status == StatusWaitlisted {
			c := *b
			queue = append(queue, &c)
		}
	}
	sort.Slice(queue, func(i, j int) bool {
		if !queue[i].BookedAt.Equal(queue[j].BookedAt) {
			return queue[i].BookedAt.Before(queue[j].BookedAt)
		}
		return queue[i].ID < queue[j].ID
	})
	return queue, nil
}

func (t *fakeTx) GetVenue(_ context.Context, venueID string) (*Venue, error) {
	v, ok := t.state.venues[venueID]
	if !ok {
		return nil, nil
	}
	c := *v
	return &c, nil
}

func (t *fakeTx) AppendAttendanceLog(_ context.Context, entry *AttendanceLogEntry) error {
	c := *entry
	c.EntryID = int64(len(t.state.attendance) + 1)
	t.state.attendance = append(t.state.attendance, c)
	return nil
}

func (t *fakeTx) EnqueueNotification(_ context.Context, n Notification) error {
	t.state.notifications = append(t.state.notifications, n)
	return nil
}
