package sqlite

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/wormhole/beam"
	"github.com/xraph/wormhole/channel"
	"github.com/xraph/wormhole/failure"
	"github.com/xraph/wormhole/id"
	"github.com/xraph/wormhole/internal/entity"
	"github.com/xraph/wormhole/user"
)

// --- Beam models ---

type beamModel struct {
	grove.BaseModel `grove:"table:wormhole_beams"`

	ID        string    `grove:"id,pk"`
	Name      string    `grove:"name,unique"`
	Active    bool      `grove:"active"`
	AdminID   int64     `grove:"admin_id"`
	Anonymity string    `grove:"anonymity"`
	Replace   bool      `grove:"replace_original"`
	Timeout   int       `grove:"timeout"`
	MaxLength int       `grove:"max_length"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func toBeamModel(b *beam.Beam) *beamModel {
	return &beamModel{
		ID:        b.ID.String(),
		Name:      b.Name,
		Active:    b.Active,
		AdminID:   b.AdminID,
		Anonymity: string(b.Anonymity),
		Replace:   b.Replace,
		Timeout:   b.Timeout,
		MaxLength: b.MaxLength,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func fromBeamModel(m *beamModel) (*beam.Beam, error) {
	beamID, err := id.ParseBeamID(m.ID)
	if err != nil {
		return nil, err
	}
	return &beam.Beam{
		Entity:    entity.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:        beamID,
		Name:      m.Name,
		Active:    m.Active,
		AdminID:   m.AdminID,
		Anonymity: beam.Anonymity(m.Anonymity),
		Replace:   m.Replace,
		Timeout:   m.Timeout,
		MaxLength: m.MaxLength,
	}, nil
}

// --- Wormhole models ---

type wormholeModel struct {
	grove.BaseModel `grove:"table:wormhole_wormholes"`

	ID        string    `grove:"id,pk"`
	ChannelID string    `grove:"channel_id,unique"`
	Beam      string    `grove:"beam"`
	AdminID   int64     `grove:"admin_id"`
	Active    bool      `grove:"active"`
	Readonly  bool      `grove:"readonly"`
	Logo      string    `grove:"logo"`
	Messages  int64     `grove:"messages"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func toWormholeModel(w *channel.Wormhole) *wormholeModel {
	return &wormholeModel{
		ID:        w.ID.String(),
		ChannelID: w.ChannelID,
		Beam:      w.Beam,
		AdminID:   w.AdminID,
		Active:    w.Active,
		Readonly:  w.Readonly,
		Logo:      w.Logo,
		Messages:  w.Messages,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

func fromWormholeModel(m *wormholeModel) (*channel.Wormhole, error) {
	whID, err := id.ParseWormholeID(m.ID)
	if err != nil {
		return nil, err
	}
	return &channel.Wormhole{
		Entity:    entity.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:        whID,
		ChannelID: m.ChannelID,
		Beam:      m.Beam,
		AdminID:   m.AdminID,
		Active:    m.Active,
		Readonly:  m.Readonly,
		Logo:      m.Logo,
		Messages:  m.Messages,
	}, nil
}

// --- User models ---

type userModel struct {
	grove.BaseModel `grove:"table:wormhole_users"`

	ID         string    `grove:"id,pk"`
	AccountID  int64     `grove:"account_id,unique"`
	Nickname   string    `grove:"nickname,unique"`
	HomeID     string    `grove:"home_id"`
	Readonly   bool      `grove:"readonly"`
	Restricted bool      `grove:"restricted"`
	Mod        bool      `grove:"mod"`
	CreatedAt  time.Time `grove:"created_at"`
	UpdatedAt  time.Time `grove:"updated_at"`
}

func toUserModel(u *user.User) *userModel {
	return &userModel{
		ID:         u.ID.String(),
		AccountID:  u.AccountID,
		Nickname:   u.Nickname,
		HomeID:     u.HomeID,
		Readonly:   u.Readonly,
		Restricted: u.Restricted,
		Mod:        u.Mod,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

func fromUserModel(m *userModel) (*user.User, error) {
	userID, err := id.ParseUserID(m.ID)
	if err != nil {
		return nil, err
	}
	return &user.User{
		Entity:     entity.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:         userID,
		AccountID:  m.AccountID,
		Nickname:   m.Nickname,
		HomeID:     m.HomeID,
		Readonly:   m.Readonly,
		Restricted: m.Restricted,
		Mod:        m.Mod,
	}, nil
}

// --- Failure models ---

type failureModel struct {
	grove.BaseModel `grove:"table:wormhole_failures"`

	ID        string    `grove:"id,pk"`
	Op        string    `grove:"op"`
	Beam      string    `grove:"beam"`
	ChannelID string    `grove:"channel_id"`
	SourceID  string    `grove:"source_id"`
	Error     string    `grove:"error"`
	FailedAt  time.Time `grove:"failed_at"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func toFailureModel(e *failure.Entry) *failureModel {
	return &failureModel{
		ID:        e.ID.String(),
		Op:        string(e.Op),
		Beam:      e.Beam,
		ChannelID: e.ChannelID,
		SourceID:  e.SourceID,
		Error:     e.Error,
		FailedAt:  e.FailedAt,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func fromFailureModel(m *failureModel) (*failure.Entry, error) {
	failureID, err := id.ParseFailureID(m.ID)
	if err != nil {
		return nil, err
	}
	return &failure.Entry{
		Entity:    entity.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:        failureID,
		Op:        failure.Op(m.Op),
		Beam:      m.Beam,
		ChannelID: m.ChannelID,
		SourceID:  m.SourceID,
		Error:     m.Error,
		FailedAt:  m.FailedAt,
	}, nil
}
