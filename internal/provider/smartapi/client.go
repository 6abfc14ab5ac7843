// Package smartapi talks to the Angel One SmartAPI: password+TOTP login and
// the historical candle endpoint.
package smartapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/shahid-2020/candlesheet/internal/clock"
	"github.com/shahid-2020/candlesheet/internal/httpclient"
	"github.com/shahid-2020/candlesheet/internal/provider"
	"github.com/shahid-2020/candlesheet/internal/ratelimit"
	"github.com/shahid-2020/candlesheet/types"
)

const (
	DefaultBaseURL = "https://apiconnect.angelone.in"

	loginPath   = "/rest/auth/angelbroking/user/v1/loginByPassword"
	candlesPath = "/rest/secure/angelbroking/historical/v1/getCandleData"

	// Used when the caller does not supply client network details.
	defaultLocalIP  = "127.0.0.1"
	defaultPublicIP = "127.0.0.1"
	defaultMAC      = "00:00:00:00:00:00"
)

// Credentials identify the trading account. The env tags are read by the
// config package.
type Credentials struct {
	APIKey     string `env:"SMARTAPI_API_KEY,required"`
	ClientID   string `env:"SMARTAPI_CLIENT_ID,required"`
	PIN        string `env:"SMARTAPI_PIN,required"`
	TOTPSecret string `env:"SMARTAPI_TOTP_SECRET,required"`
	LocalIP    string `env:"SMARTAPI_LOCAL_IP"`
	PublicIP   string `env:"SMARTAPI_PUBLIC_IP"`
	MAC        string `env:"SMARTAPI_MAC"`
}

type Config struct {
	BaseURL     string
	Credentials Credentials
	// HTTP defaults to a rate limited, retrying client sized for the
	// historical API quotas.
	HTTP   httpclient.Doer
	Logger logrus.FieldLogger
	Now    clock.Func
}

type Client struct {
	baseURL string
	creds   Credentials
	http    httpclient.Doer
	log     logrus.FieldLogger
	now     clock.Func
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Now == nil {
		cfg.Now = clock.Now
	}
	if cfg.HTTP == nil {
		cfg.HTTP = httpclient.NewClient(httpclient.ClientConfig{
			HttpClient: &http.Client{Timeout: 30 * time.Second},
			RateLimits: []ratelimit.Limit{
				{Count: 3, Per: time.Second},
				{Count: 180, Per: time.Minute},
				{Count: 5000, Per: time.Hour},
			},
			RetryConfig: httpclient.RetryConfig{
				MaxRetries:    3,
				BaseDelay:     250 * time.Millisecond,
				MaxDelay:      4 * time.Second,
				RetryOnStatus: []int{429, 500, 502, 503, 504},
			},
			Logger: cfg.Logger,
		})
	}
	for _, field := range []*string{&cfg.Credentials.LocalIP, &cfg.Credentials.PublicIP, &cfg.Credentials.MAC} {
		*field = strings.TrimSpace(*field)
	}
	if cfg.Credentials.LocalIP == "" {
		cfg.Credentials.LocalIP = defaultLocalIP
	}
	if cfg.Credentials.PublicIP == "" {
		cfg.Credentials.PublicIP = defaultPublicIP
	}
	if cfg.Credentials.MAC == "" {
		cfg.Credentials.MAC = defaultMAC
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		creds:   cfg.Credentials,
		http:    cfg.HTTP,
		log:     cfg.Logger,
		now:     cfg.Now,
	}
}

type loginRequest struct {
	ClientCode string `json:"clientcode"`
	Password   string `json:"password"`
	TOTP       string `json:"totp"`
}

// Authenticate logs in with the account PIN and a freshly generated TOTP.
// Every failure is returned as *types.AuthError.
func (c *Client) Authenticate(ctx context.Context) (*provider.Session, error) {
	code, err := totp.GenerateCode(c.creds.TOTPSecret, c.now())
	if err != nil {
		return nil, &types.AuthError{Err: fmt.Errorf("generate totp: %w", err)}
	}

	body, err := c.post(ctx, loginPath, "", loginRequest{
		ClientCode: c.creds.ClientID,
		Password:   c.creds.PIN,
		TOTP:       code,
	})
	if err != nil {
		return nil, &types.AuthError{Err: err}
	}

	jwt := gjson.GetBytes(body, "data.jwtToken").String()
	if jwt == "" {
		return nil, &types.AuthError{Err: errors.New("login response carried no jwtToken")}
	}

	c.log.WithField("client_id", c.creds.ClientID).Info("smartapi session established")
	return &provider.Session{
		JWTToken:     jwt,
		RefreshToken: gjson.GetBytes(body, "data.refreshToken").String(),
		FeedToken:    gjson.GetBytes(body, "data.feedToken").String(),
	}, nil
}

// Source binds the historical candle endpoint to a session.
func (c *Client) Source(s *provider.Session) provider.CandleSource {
	return &CandleSource{client: c, jwt: s.JWTToken}
}

// post sends payload as JSON and returns the body of a 200 response whose
// envelope reports success.
func (c *Client) post(ctx context.Context, path, jwt string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, jwt)

	res, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("non-OK response: %d %s", res.StatusCode, truncate(body))
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid JSON response: %s", truncate(body))
	}
	if !gjson.GetBytes(body, "status").Bool() {
		return nil, fmt.Errorf("smartapi error %s: %s",
			gjson.GetBytes(body, "errorcode").String(),
			gjson.GetBytes(body, "message").String())
	}

	return body, nil
}

func (c *Client) setHeaders(req *http.Request, jwt string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-UserType", "USER")
	req.Header.Set("X-SourceID", "WEB")
	req.Header.Set("X-ClientLocalIP", c.creds.LocalIP)
	req.Header.Set("X-ClientPublicIP", c.creds.PublicIP)
	req.Header.Set("X-MACAddress", c.creds.MAC)
	req.Header.Set("X-PrivateKey", c.creds.APIKey)
	if jwt != "" {
		req.Header.Set("Authorization", "Bearer "+jwt)
	}
}

func truncate(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
