package ephemera

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher turns a plaintext password into a one-way hash and checks
// candidates against it.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) (bool, error)
}

// DefaultBcryptCost is the work factor used for object passwords.
const DefaultBcryptCost = 10

// BcryptHasher hashes passwords with bcrypt.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a hasher with the given cost, or DefaultBcryptCost when cost is 0.
func NewBcryptHasher(cost int) BcryptHasher {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	return BcryptHasher{Cost: cost}
}

func (h BcryptHasher) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.Cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

func (h BcryptHasher) Verify(plaintext, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("verify password: %w", err)
}

// AccessController decides whether a requester may read or delete an object.
type AccessController struct {
	hasher PasswordHasher
}

func NewAccessController(hasher PasswordHasher) *AccessController {
	return &AccessController{hasher: hasher}
}

// AuthorizeRead returns nil when the object has no password or the supplied
// password matches, and ErrUnauthorized otherwise.
func (a *AccessController) AuthorizeRead(obj StoredObject, password string) error {
	if !obj.HasPassword() {
		return nil
	}

	ok, err := a.hasher.Verify(password, obj.PasswordHash)
	if err != nil {
		return fmt.Errorf("authorize read: %w", err)
	}
	if !ok {
		return fmt.Errorf("authorize read: %w: wrong password", ErrUnauthorized)
	}

	return nil
}

// AuthorizeDelete returns ErrForbidden unless requesterID owns the object.
// Objects uploaded anonymously can never be deleted this way.
func (a *AccessController) AuthorizeDelete(obj StoredObject, requesterID string) error {
	if obj.Owner.IsAnonymous() {
		return fmt.Errorf("authorize delete: %w: object has no owner", ErrForbidden)
	}
	if !obj.Owner.Matches(requesterID) {
		return fmt.Errorf("authorize delete: %w", ErrForbidden)
	}
	return nil
}
