package staff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"atlasgym/internal/audit"
	"atlasgym/internal/auth"
	"atlasgym/internal/errs"
	"atlasgym/internal/store"

	"github.com/go-playground/validator/v10"
)

type service struct {
	store     store.Store
	users     *auth.Directory
	log       audit.Log
	audit     audit.Recorder
	challenge *auth.Challenge
	operators *auth.StaticVerifier
	now       func() time.Time
	validate  *validator.Validate
}

func NewService(d Deps) Service {
	s := &service{
		store:     d.Store,
		users:     d.Users,
		log:       d.Audit,
		challenge: d.Challenge,
		operators: d.Operators,
		now:       d.Now,
		validate:  validator.New(),
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.audit = audit.Recorder{Log: d.Audit, Now: s.now}
	return s
}

func (s *service) Register(ctx context.Context, sess auth.Session, e NewEmployee) (*Employee, error) {
	if err := auth.RequireElevated(sess, "register employee"); err != nil {
		return nil, err
	}
	e.Name, e.Username = strings.TrimSpace(e.Name), strings.TrimSpace(e.Username)
	if err := s.validate.Struct(e); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return nil, errs.Invalid(strings.ToLower(ve[0].Field()), "is required or malformed")
		}
		return nil, errs.Invalid("employee", "is invalid")
	}
	if e.Role == "" {
		e.Role = auth.RoleStaff
	}
	if e.Role == auth.RoleDev {
		if err := auth.RequireDev(sess, "register dev account"); err != nil {
			return nil, err
		}
	}
	if _, taken := s.users.ByUsername(e.Username); taken || s.operators.Has(e.Username) {
		return nil, fmt.Errorf("username %s: %w", e.Username, errs.ErrConflict)
	}

	hash, salt, err := auth.HashPassword(e.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := auth.User{
		Name:         e.Name,
		Username:     e.Username,
		Role:         e.Role,
		PasswordHash: hash,
		Salt:         salt,
		CreatedAt:    s.now(),
	}
	id, err := s.store.Add(ctx, store.Users, u)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", e.Username, err)
	}
	u.ID = id
	s.audit.Record(ctx, audit.StaffRegistered, sess.Username, fmt.Sprintf("Se registró al empleado %s (%s).", u.Name, u.Username))
	out := employeeOf(u)
	return &out, nil
}

func (s *service) user(id string) (auth.User, error) {
	u, ok := s.users.ByID(id)
	if !ok {
		return auth.User{}, errs.NotFound("user", id)
	}
	return u, nil
}

func (s *service) Delete(ctx context.Context, sess auth.Session, id string) error {
	if err := auth.RequireElevated(sess, "delete employee"); err != nil {
		return err
	}
	u, err := s.user(id)
	if err != nil {
		return err
	}
	if u.Role == auth.RoleDev {
		if err := auth.RequireDev(sess, "delete dev account"); err != nil {
			return err
		}
	}
	if err := s.store.Delete(ctx, store.Join(store.Users, id)); err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	s.audit.Record(ctx, audit.StaffDeleted, sess.Username, fmt.Sprintf("Se eliminó al empleado %s (%s).", u.Name, u.Username))
	return nil
}

func (s *service) SetHiddenSections(ctx context.Context, sess auth.Session, id string, sections []string) (*Employee, error) {
	if err := auth.RequireDev(sess, "set section visibility"); err != nil {
		return nil, err
	}
	u, err := s.user(id)
	if err != nil {
		return nil, err
	}
	hidden := make([]string, 0, len(sections))
	seen := map[string]bool{}
	for _, sec := range sections {
		if !auth.KnownSection(sec) {
			return nil, errs.Invalid("sections", fmt.Sprintf("unknown section %q", sec))
		}
		if !seen[sec] {
			seen[sec] = true
			hidden = append(hidden, sec)
		}
	}
	sort.Strings(hidden)
	if err := s.store.Update(ctx, store.Join(store.Users, id), map[string]any{"hiddenSections": hidden}); err != nil {
		return nil, fmt.Errorf("hide sections of %s: %w", id, err)
	}
	s.audit.Record(ctx, audit.StaffAccess, sess.Username,
		fmt.Sprintf("Se actualizaron las secciones visibles de %s: ocultas %s.", u.Name, strings.Join(hidden, ", ")))
	u.HiddenSections = hidden
	out := employeeOf(u)
	return &out, nil
}

func (s *service) ForceLogout(ctx context.Context, sess auth.Session, id string) error {
	if err := auth.RequireDev(sess, "force logout"); err != nil {
		return err
	}
	u, err := s.user(id)
	if err != nil {
		return err
	}
	if err := s.store.Update(ctx, store.Join(store.Users, id), map[string]any{"sessionsValidAfter": s.now()}); err != nil {
		return fmt.Errorf("force logout %s: %w", id, err)
	}
	s.audit.Record(ctx, audit.StaffLoggedOut, sess.Username, fmt.Sprintf("Se cerró la sesión de %s (%s).", u.Name, u.Username))
	return nil
}

// List orders employees by name.
func (s *service) List() []Employee {
	users := s.users.All()
	out := make([]Employee, len(users))
	for i, u := range users {
		out[i] = employeeOf(u)
	}
	sort.SliceStable(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out
}

func (s *service) History(ctx context.Context, sess auth.Session) ([]audit.Entry, error) {
	if err := auth.RequireElevated(sess, "read history"); err != nil {
		return nil, err
	}
	if s.log == nil {
		return []audit.Entry{}, nil
	}
	return s.log.List(ctx)
}

func (s *service) ClearHistory(ctx context.Context, sess auth.Session, challenge *string) (bool, error) {
	if err := auth.RequireElevated(sess, "clear history"); err != nil {
		return false, err
	}
	if ok, err := s.challenge.Check(challenge); err != nil || !ok {
		return false, err
	}
	if s.log != nil {
		if err := s.log.Clear(ctx); err != nil {
			return false, fmt.Errorf("clear history: %w", err)
		}
	}
	s.audit.Record(ctx, audit.HistoryCleared, sess.Username, "Se ha limpiado todo el historial de acciones.")
	return true, nil
}

func (s *service) Reset(ctx context.Context, sess auth.Session, challenge *string) (bool, error) {
	if err := auth.RequireDev(sess, "reset system"); err != nil {
		return false, err
	}
	if ok, err := s.challenge.Check(challenge); err != nil || !ok {
		return false, err
	}
	if err := s.store.Delete(ctx, ""); err != nil {
		return false, fmt.Errorf("reset: %w", err)
	}
	if s.log != nil {
		if err := s.log.Clear(ctx); err != nil {
			slog.Warn("audit sinks not cleared after reset", "error", err)
		}
	}
	slog.Warn("all data deleted", "user", sess.Username)
	return true, nil
}
