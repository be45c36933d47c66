package user

import (
	"testing"
	"time"
)

func TestMakeVerifyToken(t *testing.T) {
	gen := newTokenGenerator(passwordResetSalt, "secret", 3*24*time.Hour)

	now := time.Now()
	usr := User{
		ID:        "3f1c7b52-7c3c-4d0e-9a55-0d8e52e1c9a1",
		Name:      "T",
		Email:     "t@test.test",
		Role:      RoleCustomer,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	_ = usr.SetPassword("pwd")

	validToken, _ := gen.makeToken(usr)

	// generate an expired token
	dayLate := gen.timeout + (24 * time.Hour)
	nowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, _ := gen.makeToken(usr)
	nowFunc = time.Now // reset

	// the same token stops working once the user changes
	changed := usr
	changed.EmailConfirmedAt = now

	otherPurpose, _ := newTokenGenerator(emailConfirmSalt, "secret", gen.timeout).makeToken(usr)

	tests := []struct {
		name    string
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", usr: usr, wantErr: errInvalidToken},
		{name: "invalid parts len", usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", usr: usr, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", usr: usr, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", usr: usr, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "expired token", usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "user changed", usr: changed, token: validToken, wantErr: errInvalidToken},
		{name: "other purpose", usr: usr, token: otherPurpose, wantErr: errInvalidToken},
		{name: "valid token", usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := gen.verifyToken(tt.usr, tt.token); err != tt.wantErr {
				t.Errorf("verifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	usr := User{ID: "3f1c7b52-7c3c-4d0e-9a55-0d8e52e1c9a1"}
	id, err := decodeUID(EncodeUID(usr))
	if err != nil || id != usr.ID {
		t.Errorf("decodeUID(EncodeUID()) = %v, %v; want %v", id, err, usr.ID)
	}
	if _, err = decodeUID("%%%"); err == nil {
		t.Errorf("decodeUID() expected an error")
	}
}
