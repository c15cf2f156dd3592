package engine

import (
	"context"
	"errors"
	"fmt"

	"rankview/core"
	"rankview/viewstate"
)

// ProfileState is the observable profile snapshot. Data is nil without a session.
type ProfileState = viewstate.State[*core.User, viewstate.None]

type profileMutation = viewstate.Mutation[*core.User, viewstate.None]

const updateProfileCommand = "update_profile"

// ErrLoginUnsupported is returned when the auth service cannot open sessions.
var ErrLoginUnsupported = errors.New("auth service does not support login")

// Profile is the view model mirroring the signed-in user's profile.
type Profile struct {
	ctrl    *viewstate.Controller[*core.User, viewstate.None]
	auth    AuthService
	bus     *EventBus
	ready   *viewstate.Task
	lastErr error
}

// NewProfile builds the view model and reads the current session.
func NewProfile(auth AuthService, bus *EventBus, opts ViewOptions) *Profile {
	if auth == nil || bus == nil {
		panic("NewProfile requires non-nil auth and bus")
	}
	p := &Profile{auth: auth, bus: bus}
	p.ctrl = viewstate.New(p.fetch, viewstate.None{}, opts.profileOptions()...)
	p.ctrl.OnChange(p.publish)
	p.ready = p.Initialize()
	return p
}

func (p *Profile) fetch(_ context.Context, _ viewstate.None) (*core.User, error) {
	return p.currentUser(), nil
}

func (p *Profile) currentUser() *core.User {
	u, ok := p.auth.CurrentUser()
	if !ok || u == nil {
		return nil
	}
	cp := u.Clone()
	return &cp
}

func (p *Profile) publish(st ProfileState) {
	ctx := context.Background()
	if st.Err != nil && st.Err != p.lastErr {
		command := "profile"
		var cmdErr *viewstate.CommandError
		if errors.As(st.Err, &cmdErr) {
			command = "profile." + cmdErr.Command
		}
		p.bus.Publish(ctx, core.NewCommandFailed(command, st.Err))
	}
	p.lastErr = st.Err
	p.bus.Publish(ctx, core.NewProfileChanged(st.Data, errorString(st.Err)).WithVersion(st.Version))
}

// Ready is the task of the read issued at construction.
func (p *Profile) Ready() *viewstate.Task { return p.ready }

// Initialize re-reads the authoritative profile from the auth service.
func (p *Profile) Initialize() *viewstate.Task { return p.ctrl.Initialize() }

// Reload is Initialize under the name a pull-to-refresh would use.
func (p *Profile) Reload() *viewstate.Task { return p.ctrl.Refresh() }

// UpdateProfile forwards the edit to the auth service. On success the profile
// is re-read, a profile_updated event is published and the snapshot is
// republished; on failure the error is logged and stored in the
// error slot while the profile stays unchanged. With
// ViewOptions.QuietProfileUpdates the failure is only logged. Loading is never set.
func (p *Profile) UpdateProfile(fullName string, bio *string) *viewstate.Task {
	return p.ctrl.Exec(updateProfileCommand, func(ctx context.Context) (profileMutation, error) {
		if err := p.auth.UpdateProfile(ctx, fullName, bio); err != nil {
			return nil, err
		}
		u := p.currentUser()
		p.bus.Publish(ctx, core.NewProfileUpdated(u))
		return func(s *ProfileState) { s.Data = u }, nil
	})
}

// Logout asks the auth service to end the session. Local state is left alone;
// the next Initialize or Reload observes the cleared session.
func (p *Profile) Logout() *viewstate.Task {
	return p.ctrl.Exec("logout", func(ctx context.Context) (profileMutation, error) {
		var user core.UserID
		if u := p.currentUser(); u != nil {
			user = u.ID
		}
		if err := p.auth.Logout(ctx); err != nil {
			return nil, err
		}
		p.bus.Publish(ctx, core.NewLoggedOut(user))
		return nil, nil
	})
}

// Login opens a session for user when the auth service supports it, then
// republishes the profile.
func (p *Profile) Login(user core.UserID) *viewstate.Task {
	starter, ok := p.auth.(SessionStarter)
	if !ok {
		return viewstate.FailedTask("login", ErrLoginUnsupported)
	}
	return p.ctrl.Exec("login", func(ctx context.Context) (profileMutation, error) {
		if err := starter.Login(ctx, user); err != nil {
			return nil, fmt.Errorf("login %s: %w", user, err)
		}
		u := p.currentUser()
		return func(s *ProfileState) { s.Data = u }, nil
	})
}

// AcknowledgeError clears the error slot.
func (p *Profile) AcknowledgeError() *viewstate.Task { return p.ctrl.AcknowledgeError() }

// Snapshot returns the current state with a private copy of the user.
func (p *Profile) Snapshot() ProfileState {
	st := p.ctrl.Snapshot()
	if st.Data != nil {
		cp := st.Data.Clone()
		st.Data = &cp
	}
	return st
}

// Subscribe streams snapshots; see viewstate.Controller.Subscribe.
func (p *Profile) Subscribe(buffer int) (int, <-chan ProfileState) { return p.ctrl.Subscribe(buffer) }

// Unsubscribe closes the snapshot stream registered under id.
func (p *Profile) Unsubscribe(id int) { p.ctrl.Unsubscribe(id) }

// Close stops the controller loop; later commands fail with viewstate.ErrClosed.
func (p *Profile) Close() { p.ctrl.Close() }
