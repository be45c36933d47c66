package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/canteen/apps/api/echo"
	"github.com/trezcool/canteen/core/user"
	emailsvc "github.com/trezcool/canteen/services/email"
)

func TestHome(t *testing.T) {
	app := setup(t)
	rec := app.do(httpTest{method: http.MethodGet, path: "/"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to the Canteen API!", rec.Body.String())
}

func Test_userApi_signIn(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "Ada", "ada@canteen.test", user.RoleCustomer)
	inactive := testCreateInactive(t, app)

	authFailed := marshalObj(t, httpErr{Error: "authentication failed"})

	tests := []httpTest{
		{name: "empty body", body: []byte(`{}`), wantCode: http.StatusBadRequest},
		{name: "unknown email", body: []byte(`{"email":"bob@canteen.test","password":"x"}`), wantCode: http.StatusBadRequest, wantData: authFailed},
		{name: "wrong password", body: []byte(`{"email":"ada@canteen.test","password":"nope"}`), wantCode: http.StatusBadRequest, wantData: authFailed},
		{
			name:     "deactivated",
			body:     marshalObj(t, echoapi.SignInRequest{Email: inactive.Email, Password: "Pwd-" + inactive.Email}),
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "success (email is case insensitive)", body: []byte(`{"email":" ADA@canteen.test ","password":"Pwd-ada@canteen.test"}`), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPost, "/v1/auth/signin"
			rec := app.do(tt)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var resp echoapi.SignInResponse
				decode(t, rec, &resp)
				assert.NotEmpty(t, resp.Token)
				require.NotNil(t, resp.User)
				assert.Equal(t, usr.ID, resp.User.ID)
			}
		})
	}
}

func testCreateInactive(t *testing.T, app *testApp) user.User {
	return testCreateUser(t, app, "Gone", "gone@canteen.test", user.RoleCustomer, false)
}

func testCreateUser(t *testing.T, app *testApp, name, email, role string, isActive bool) user.User {
	usr := app.createUser(t, name, email, role)
	if !isActive {
		usr.IsActive = false
		var err error
		usr, err = app.userRepo.UpdateUser(context.Background(), usr)
		require.NoError(t, err)
	}
	return usr
}

func Test_userApi_me(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "Ada", "ada@canteen.test", user.RoleCustomer)
	token := getToken(t, app.conf, usr)

	tests := []httpTest{
		{name: "no token", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "bad token", token: "not-a-token", wantCode: http.StatusUnauthorized},
		{name: "ok", token: token, wantCode: http.StatusOK, wantData: marshalObj(t, usr)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodGet, "/v1/auth/me"
			checkCodeAndData(t, tt, app.do(tt))
		})
	}
}

func Test_userApi_refreshToken(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "Ada", "ada@canteen.test", user.RoleCustomer)
	gone := testCreateInactive(t, app)

	rec := app.do(httpTest{method: http.MethodPost, path: "/v1/auth/token-refresh", token: getToken(t, app.conf, usr)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp echoapi.SignInResponse
	decode(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)

	rec = app.do(httpTest{method: http.MethodPost, path: "/v1/auth/token-refresh", token: getToken(t, app.conf, gone)})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func Test_userApi_signUp(t *testing.T) {
	app := setup(t)
	app.createUser(t, "Ada", "ada@canteen.test", user.RoleCustomer)

	tests := []httpTest{
		{name: "missing fields", body: []byte(`{}`), wantCode: http.StatusBadRequest},
		{name: "duplicate email", body: []byte(`{"name":"Ada","email":"ada@canteen.test","password":"Sup3r-S3cret!","password_confirm":"Sup3r-S3cret!"}`), wantCode: http.StatusBadRequest},
		{name: "ok", body: []byte(`{"name":"Bob","email":"bob@canteen.test","password":"Sup3r-S3cret!","password_confirm":"Sup3r-S3cret!","role":"admin"}`), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPost, "/v1/auth/signup"
			rec := app.do(tt)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusCreated {
				var usr user.User
				decode(t, rec, &usr)
				assert.Equal(t, user.RoleCustomer, usr.Role, "sign up never grants a staff role")
				assert.False(t, usr.IsEmailConfirmed())

				msg, ok := emailsvc.LastSentMessage()
				require.True(t, ok)
				assert.Equal(t, "bob@canteen.test", msg.To[0].Address)
			}
		})
	}
}

func Test_userApi_passwordReset(t *testing.T) {
	app := setup(t)
	app.createUser(t, "Ada", "ada@canteen.test", user.RoleCustomer)

	// the response never tells whether the account exists
	for _, email := range []string{"ada@canteen.test", "nobody@canteen.test"} {
		rec := app.do(httpTest{method: http.MethodPost, path: "/v1/auth/password-reset", body: marshalObj(t, echoapi.PasswordResetRequest{Email: email})})
		assert.Equal(t, http.StatusOK, rec.Code, email)
	}

	rec := app.do(httpTest{method: http.MethodPost, path: "/v1/auth/password-reset", body: []byte(`{"email":"nope"}`)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_userApi_profiles(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "Root", "root@canteen.test", user.RoleAdmin)
	staff := app.createUser(t, "Cook", "cook@canteen.test", user.RoleStaff)
	ada := app.createUser(t, "Ada", "ada@canteen.test", user.RoleCustomer)
	adminToken := getToken(t, app.conf, admin)

	tests := []httpTest{
		{name: "staff cannot list", method: http.MethodGet, path: "/v1/admin/profiles", token: getToken(t, app.conf, staff), wantCode: http.StatusForbidden},
		{name: "retrieve", method: http.MethodGet, path: "/v1/admin/profiles/" + ada.ID, token: adminToken, wantCode: http.StatusOK, wantData: marshalObj(t, ada)},
		{name: "retrieve unknown", method: http.MethodGet, path: "/v1/admin/profiles/unknown", token: adminToken, wantCode: http.StatusNotFound},
		{name: "admin cannot demote self", method: http.MethodPatch, path: "/v1/admin/profiles/" + admin.ID, body: []byte(`{"role":"customer"}`), token: adminToken, wantCode: http.StatusForbidden},
		{name: "admin cannot deactivate self", method: http.MethodPatch, path: "/v1/admin/profiles/" + admin.ID, body: []byte(`{"is_active":false}`), token: adminToken, wantCode: http.StatusForbidden},
		{name: "roles", method: http.MethodGet, path: "/v1/admin/profiles/roles", token: adminToken, wantCode: http.StatusOK, wantData: marshalObj(t, user.Roles)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.do(tt))
		})
	}

	rec := app.do(httpTest{method: http.MethodGet, path: "/v1/admin/profiles?role=staff", token: adminToken})
	require.Equal(t, http.StatusOK, rec.Code)
	var users []user.User
	decode(t, rec, &users)
	require.Len(t, users, 1)
	assert.Equal(t, staff.ID, users[0].ID)
}
