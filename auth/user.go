package auth

import (
	"errors"

	"github.com/jmoiron/monet/db"
	"github.com/jmoiron/monet/db/monarch"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidPassword is returned when a password does not match.
var ErrInvalidPassword = errors.New("invalid password")

type User struct {
	ID           uint64
	Username     string
	PasswordHash string `db:"password_hash"`
}

var userMigrations = monarch.Set{
	Name: "user",
	Migrations: []monarch.Migration{
		{
			Up: `CREATE TABLE IF NOT EXISTS users (
			id integer NOT NULL PRIMARY KEY,
			username text NOT NULL UNIQUE,
			password_hash text NOT NULL
		);`,
			Down: `DROP TABLE users;`,
		},
	},
}

const bcryptCost = bcrypt.DefaultCost

type UserService struct {
	db db.DB
}

func NewUserService(conn db.DB) *UserService {
	return &UserService{db: conn}
}

// CreateUser attempts to create a new user with the username and password.
// If a user with that username already exists, an error is returned.
func (s *UserService) CreateUser(username, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO users (username, password_hash) VALUES (?, ?);`, username, string(hashed))
	return err
}

// Validate that the username and password match one in the database.  If
// an error occurs, ok will be false.
func (s *UserService) Validate(username, password string) (ok bool, err error) {
	return validate(s.db, username, password)
}

// validate a username and password w/ the provided getter.
func validate(db db.Getter, username, password string) (ok bool, err error) {
	var u User
	if err := db.Get(&u, `SELECT id, username, password_hash FROM users WHERE username=?`, username); err != nil {
		return false, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return false, ErrInvalidPassword
	}
	return true, nil
}

// ChangePassword changes the user's password to newPassword, providing that
// the current password is correct.
func (s *UserService) ChangePassword(username, currentPassword, newPassword string) (ok bool, err error) {
	err = db.With(s.db, func(tx *sqlx.Tx) error {
		if _, err := validate(tx, username, currentPassword); err != nil {
			return err
		}
		newHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`UPDATE users SET password_hash=? WHERE username=?`, string(newHash), username)
		return err
	})

	return err == nil, err
}
