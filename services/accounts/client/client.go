// Copyright 2023 Sorint.lab
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied
// See the License for the specific language governing permissions and
// limitations under the License.

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"sync"

	"github.com/sorintlab/errors"

	"agola.io/accounts/internal/util"
	"agola.io/accounts/services/accounts/api/types"
	"agola.io/accounts/services/common"
)

const (
	accountsHasMoreHeader = "X-Accounts-HasMore"
	csrfHeader            = "X-Csrf-Token"
)

type Response struct {
	*http.Response

	HasMore bool
}

// Client is the accounts api client. It keeps the session cookies and the
// last received csrf token so a sequence of calls behaves like a browser
// session.
type Client struct {
	*common.Client

	csrfTokenMu sync.Mutex
	csrfToken   string
}

// NewClient initializes and returns a API client.
func NewClient(url, token string) *Client {
	c := common.NewClient(url+"/api/v1", token)

	// cookiejar.New never returns an error with nil options
	jar, _ := cookiejar.New(nil)
	c.SetHTTPClient(&http.Client{Jar: jar})

	return &Client{Client: c}
}

// SetHTTPClient replaces the http client. A cookie jar is added when missing.
func (c *Client) SetHTTPClient(client *http.Client) {
	if client.Jar == nil {
		jar, _ := cookiejar.New(nil)
		client.Jar = jar
	}
	c.Client.SetHTTPClient(client)
}

func (c *Client) CSRFToken() string {
	c.csrfTokenMu.Lock()
	defer c.csrfTokenMu.Unlock()

	return c.csrfToken
}

func (c *Client) GetResponse(ctx context.Context, method, path string, query url.Values, contentLength int64, header http.Header, ibody io.Reader) (*Response, error) {
	h := http.Header{}
	for k, v := range header {
		h[k] = v
	}
	switch method {
	case "GET", "HEAD", "OPTIONS", "TRACE":
	default:
		if token := c.CSRFToken(); token != "" {
			h.Set(csrfHeader, token)
		}
		h.Set("Referer", c.URL())
	}

	cresp, err := c.Client.DoRequest(ctx, method, path, query, contentLength, h, ibody)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	resp := &Response{Response: cresp}

	if token := resp.Header.Get(csrfHeader); token != "" {
		c.csrfTokenMu.Lock()
		c.csrfToken = token
		c.csrfTokenMu.Unlock()
	}

	if err := util.ErrFromRemote(resp.Response); err != nil {
		return resp, errors.WithStack(err)
	}

	hasMore := false
	hasMoreValue := resp.Header.Get(accountsHasMoreHeader)
	if hasMoreValue != "" {
		hasMore, err = strconv.ParseBool(hasMoreValue)
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}

	resp.HasMore = hasMore

	return resp, nil
}

func (c *Client) GetParsedResponse(ctx context.Context, method, path string, query url.Values, header http.Header, ibody io.Reader, obj any) (*Response, error) {
	resp, err := c.GetResponse(ctx, method, path, query, -1, header, ibody)
	if err != nil {
		return resp, errors.WithStack(err)
	}
	defer resp.Body.Close()

	d := json.NewDecoder(resp.Body)

	return resp, errors.WithStack(d.Decode(obj))
}

func (c *Client) doJSON(ctx context.Context, method, path string, req any, obj any) (*Response, error) {
	reqj, err := json.Marshal(req)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if obj == nil {
		resp, err := c.GetResponse(ctx, method, path, nil, -1, common.JSONContent, bytes.NewReader(reqj))
		if resp != nil && err == nil {
			resp.Body.Close()
		}
		return resp, errors.WithStack(err)
	}

	resp, err := c.GetParsedResponse(ctx, method, path, nil, common.JSONContent, bytes.NewReader(reqj), obj)
	return resp, errors.WithStack(err)
}

// FetchCSRFToken retrieves a csrf token and its cookie. It must be called
// before the first state changing request of a session.
func (c *Client) FetchCSRFToken(ctx context.Context) (*Response, error) {
	resp, err := c.GetResponse(ctx, "GET", "/csrf", nil, -1, common.JSONContent, nil)
	if err != nil {
		return resp, errors.WithStack(err)
	}
	resp.Body.Close()

	return resp, nil
}

func (c *Client) CreateUser(ctx context.Context, req *types.CreateUserRequest) (*types.UserResponse, *Response, error) {
	user := new(types.UserResponse)
	resp, err := c.doJSON(ctx, "POST", "/users", req, user)
	return user, resp, errors.WithStack(err)
}

func (c *Client) ResendPhoneToken(ctx context.Context, userID string) (*types.MessageResponse, *Response, error) {
	res := new(types.MessageResponse)
	resp, err := c.GetParsedResponse(ctx, "POST", fmt.Sprintf("/users/%s/phone/token", url.PathEscape(userID)), nil, common.JSONContent, nil, res)
	return res, resp, errors.WithStack(err)
}

func (c *Client) VerifyPhone(ctx context.Context, userID string, req *types.VerifyPhoneRequest) (*types.MessageResponse, *Response, error) {
	res := new(types.MessageResponse)
	resp, err := c.doJSON(ctx, "POST", fmt.Sprintf("/users/%s/phone/verify", url.PathEscape(userID)), req, res)
	return res, resp, errors.WithStack(err)
}

func (c *Client) GetUser(ctx context.Context, userID string) (*types.UserResponse, *Response, error) {
	user := new(types.UserResponse)
	resp, err := c.GetParsedResponse(ctx, "GET", fmt.Sprintf("/users/%s", url.PathEscape(userID)), nil, common.JSONContent, nil, user)
	return user, resp, errors.WithStack(err)
}

func (c *Client) UpdateUser(ctx context.Context, userID string, req *types.UpdateUserRequest) (*types.UserResponse, *Response, error) {
	user := new(types.UserResponse)
	resp, err := c.doJSON(ctx, "PUT", fmt.Sprintf("/users/%s", url.PathEscape(userID)), req, user)
	return user, resp, errors.WithStack(err)
}

func (c *Client) GetCurrentUser(ctx context.Context) (*types.UserResponse, *Response, error) {
	user := new(types.UserResponse)
	resp, err := c.GetParsedResponse(ctx, "GET", "/user", nil, common.JSONContent, nil, user)
	return user, resp, errors.WithStack(err)
}

func (c *Client) ChangePhone(ctx context.Context, req *types.ChangePhoneRequest) (*types.UserResponse, *Response, error) {
	user := new(types.UserResponse)
	resp, err := c.doJSON(ctx, "PUT", "/user/phone", req, user)
	return user, resp, errors.WithStack(err)
}

func (c *Client) DeleteCurrentUser(ctx context.Context, req *types.DeleteCurrentUserRequest) (*Response, error) {
	resp, err := c.doJSON(ctx, "DELETE", "/user", req, nil)
	return resp, errors.WithStack(err)
}

func (c *Client) Login(ctx context.Context, req *types.LoginRequest) (*types.LoginResponse, *Response, error) {
	res := new(types.LoginResponse)
	resp, err := c.doJSON(ctx, "POST", "/auth/login", req, res)
	return res, resp, errors.WithStack(err)
}

func (c *Client) Logout(ctx context.Context) (*Response, error) {
	resp, err := c.GetResponse(ctx, "POST", "/auth/logout", nil, -1, common.JSONContent, nil)
	if err != nil {
		return resp, errors.WithStack(err)
	}
	resp.Body.Close()

	return resp, nil
}

func (c *Client) ChangePassword(ctx context.Context, req *types.ChangePasswordRequest) (*types.UserResponse, *Response, error) {
	user := new(types.UserResponse)
	resp, err := c.doJSON(ctx, "PUT", "/user/password", req, user)
	return user, resp, errors.WithStack(err)
}

func (c *Client) ResetPassword(ctx context.Context, req *types.ResetPasswordRequest) (*types.MessageResponse, *Response, error) {
	res := new(types.MessageResponse)
	resp, err := c.doJSON(ctx, "POST", "/password/reset", req, res)
	return res, resp, errors.WithStack(err)
}

func (c *Client) ConfirmPasswordReset(ctx context.Context, req *types.ConfirmPasswordResetRequest) (*types.MessageResponse, *Response, error) {
	res := new(types.MessageResponse)
	resp, err := c.doJSON(ctx, "POST", "/password/reset/confirm", req, res)
	return res, resp, errors.WithStack(err)
}

func (c *Client) GetEmailDevices(ctx context.Context) ([]*types.EmailDeviceResponse, *Response, error) {
	devices := []*types.EmailDeviceResponse{}
	resp, err := c.GetParsedResponse(ctx, "GET", "/user/emaildevices", nil, common.JSONContent, nil, &devices)
	return devices, resp, errors.WithStack(err)
}

// VerifyOTP runs the otp token form. The response status is 202 for a
// successful challenge and 200 for a verified token.
func (c *Client) VerifyOTP(ctx context.Context, req *types.VerifyOTPRequest) (*types.VerifyOTPResponse, *Response, error) {
	res := new(types.VerifyOTPResponse)
	resp, err := c.doJSON(ctx, "POST", "/user/otp/verify", req, res)
	return res, resp, errors.WithStack(err)
}

func (c *Client) VerifyEmail(ctx context.Context, req *types.VerifyOTPRequest) (*types.VerifyOTPResponse, *Response, error) {
	res := new(types.VerifyOTPResponse)
	resp, err := c.doJSON(ctx, "POST", "/user/email/verify", req, res)
	return res, resp, errors.WithStack(err)
}

func (c *Client) ChangeEmail(ctx context.Context, req *types.ChangeEmailRequest) (*types.VerifyOTPResponse, *Response, error) {
	res := new(types.VerifyOTPResponse)
	resp, err := c.doJSON(ctx, "PUT", "/user/email", req, res)
	return res, resp, errors.WithStack(err)
}

func (c *Client) AdminGetUsers(ctx context.Context, start string, limit int, asc bool) ([]*types.UserResponse, *Response, error) {
	q := url.Values{}
	if start != "" {
		q.Add("start", start)
	}
	if limit > 0 {
		q.Add("limit", strconv.Itoa(limit))
	}
	if asc {
		q.Add("asc", "")
	}

	users := []*types.UserResponse{}
	resp, err := c.GetParsedResponse(ctx, "GET", "/admin/users", q, common.JSONContent, nil, &users)
	return users, resp, errors.WithStack(err)
}

func (c *Client) AdminCreateUser(ctx context.Context, req *types.AdminCreateUserRequest) (*types.UserResponse, *Response, error) {
	user := new(types.UserResponse)
	resp, err := c.doJSON(ctx, "POST", "/admin/users", req, user)
	return user, resp, errors.WithStack(err)
}

func (c *Client) AdminDeleteUser(ctx context.Context, userRef string) (*Response, error) {
	resp, err := c.GetResponse(ctx, "DELETE", fmt.Sprintf("/admin/users/%s", url.PathEscape(userRef)), nil, -1, common.JSONContent, nil)
	if err != nil {
		return resp, errors.WithStack(err)
	}
	resp.Body.Close()

	return resp, nil
}
