package auth

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/MakeNowJust/heredoc"

	"github.com/unkn0wn-root/devwebgen/internal/vars"
)

// Ref renders a referenced variable name as a script expression.
type Ref func(name string) string

func paramsRef(name string) string {
	return "load.params." + name
}

type snippet struct {
	ref Ref
}

// value renders a config value: references become expressions, anything
// else a quoted literal.
func (s snippet) value(v string) string {
	if v == "" {
		return `""`
	}
	if r, ok := vars.Whole(v); ok {
		return s.ref(r.Name)
	}
	return strconv.Quote(v)
}

// InitSnippet renders the initialization code for cfg. A nil ref maps
// references to load.params.
func InitSnippet(cfg *Config, ref Ref) string {
	if cfg == nil {
		return "// No authentication configured\n"
	}
	if ref == nil {
		ref = paramsRef
	}
	s := snippet{ref: ref}
	switch cfg.Type {
	case TypeOAuth2:
		return s.oauth2(cfg)
	case TypeBasic:
		return s.basic(cfg)
	case TypeBearer:
		return s.bearer(cfg)
	case TypeAPIKey:
		return s.apiKey(cfg)
	case TypeAWSv4:
		return s.aws(cfg)
	case TypeDigest:
		return s.digest(cfg)
	default:
		return generic(cfg)
	}
}

func (s snippet) oauth2(cfg *Config) string {
	grant := cfg.Get("grant_type", "grantType")
	if grant == "" {
		grant = "authorization_code"
	}
	tokenURL := cfg.Get("accessTokenUrl", "tokenUrl")
	clientID := s.value(cfg.Get("clientId", "client_id"))
	clientSecret := s.value(cfg.Get("clientSecret", "client_secret"))
	scope := ""
	if v := cfg.Get("scope"); v != "" {
		scope = fmt.Sprintf("\n        \"scope\": %s,", strconv.Quote(v))
	}

	switch grant {
	case "client_credentials":
		return heredoc.Docf(`
			// OAuth 2.0 - Client Credentials Flow
			const oauth2Token_response = new load.WebRequest({
			    url: %s,
			    method: "POST",
			    headers: {
			        "Content-Type": "application/x-www-form-urlencoded"
			    },
			    body: {
			        "grant_type": "client_credentials",
			        "client_id": %s,
			        "client_secret": %s,%s
			    },
			    extractors: [
			        new load.JsonPathExtractor("accessToken", "$.access_token"),
			        new load.JsonPathExtractor("tokenType", "$.token_type"),
			        new load.JsonPathExtractor("expiresIn", "$.expires_in")
			    ],
			    returnBody: true
			}).sendSync();
			load.global.oauth2AccessToken = oauth2Token_response.extractors.accessToken;
			load.global.oauth2TokenType = oauth2Token_response.extractors.tokenType || "Bearer";

			load.log("OAuth2 token acquired", load.LogLevel.info);
		`, strconv.Quote(tokenURL), clientID, clientSecret, scope)
	case "password", "password_credentials":
		return heredoc.Docf(`
			// OAuth 2.0 - Password Grant Flow
			const oauth2Token_response = new load.WebRequest({
			    url: %s,
			    method: "POST",
			    headers: {
			        "Content-Type": "application/x-www-form-urlencoded"
			    },
			    body: {
			        "grant_type": "password",
			        "username": %s,
			        "password": %s,
			        "client_id": %s,
			        "client_secret": %s,%s
			    },
			    extractors: [
			        new load.JsonPathExtractor("accessToken", "$.access_token"),
			        new load.JsonPathExtractor("refreshToken", "$.refresh_token"),
			        new load.JsonPathExtractor("tokenType", "$.token_type")
			    ],
			    returnBody: true
			}).sendSync();
			load.global.oauth2AccessToken = oauth2Token_response.extractors.accessToken;
			load.global.oauth2RefreshToken = oauth2Token_response.extractors.refreshToken;
			load.global.oauth2TokenType = oauth2Token_response.extractors.tokenType || "Bearer";

			load.log("OAuth2 token acquired for user", load.LogLevel.info);
		`, strconv.Quote(tokenURL), s.value(cfg.Get("username")), s.value(cfg.Get("password")), clientID, clientSecret, scope)
	default:
		token := cfg.Get("accessToken", "access_token")
		if token == "" {
			token = "YOUR_ACCESS_TOKEN"
		}
		return heredoc.Docf(`
			// OAuth 2.0 - Authorization Code Flow
			// Requires a manual authorization step or a pre-configured token
			load.global.oauth2AccessToken = %s;
			load.global.oauth2TokenType = "Bearer";
		`, s.value(token))
	}
}

func (s snippet) basic(cfg *Config) string {
	tick := "`"
	return heredoc.Docf(`
		// Basic Authentication
		const basicUsername = %s;
		const basicPassword = %s;
		const basicAuthCredentials = load.utils.base64Encode(%s${basicUsername}:${basicPassword}%s);
		load.global.basicAuthHeader = %sBasic ${basicAuthCredentials}%s;

		load.log("Basic Auth configured", load.LogLevel.info);
	`, s.value(cfg.Get("username")), s.value(cfg.Get("password")), tick, tick, tick, tick)
}

func (s snippet) bearer(cfg *Config) string {
	tick := "`"
	return heredoc.Docf(`
		// Bearer Token Authentication
		load.global.bearerToken = %s;
		load.global.authorizationHeader = %sBearer ${load.global.bearerToken}%s;

		load.log("Bearer Token configured", load.LogLevel.info);
	`, s.value(cfg.Get("token")), tick, tick)
}

func (s snippet) apiKey(cfg *Config) string {
	if APIKeyIn(cfg) == "query" {
		return heredoc.Docf(`
			// API Key Authentication (Query Parameter)
			load.global.apiKey = %s;
			load.global.apiKeyParam = %s;

			load.log("API Key configured in query parameters", load.LogLevel.info);
		`, s.value(cfg.Get("value")), strconv.Quote(apiKeyName(cfg)))
	}
	return heredoc.Docf(`
		// API Key Authentication (Header)
		load.global.apiKey = %s;
		load.global.apiKeyHeader = %s;

		load.log("API Key configured in header", load.LogLevel.info);
	`, s.value(cfg.Get("value")), strconv.Quote(apiKeyName(cfg)))
}

func (s snippet) aws(cfg *Config) string {
	session := ""
	if v := cfg.Get("sessionToken"); v != "" {
		session = fmt.Sprintf("\n    sessionToken: %s,", s.value(v))
	}
	region := cfg.Get("region")
	if region == "" {
		region = "us-east-1"
	}
	service := cfg.Get("service")
	if service == "" {
		service = "s3"
	}
	return heredoc.Docf(`
		// AWS Signature Version 4 Authentication
		load.setUserCredentials(new load.AWSAuthentication(load.AWSProviderType.Static, {
		    accessKeyID: %s,
		    secretAccessKey: %s,%s
		}));

		// Requests sign themselves through their awsSigning option
		load.global.awsRegion = %s;
		load.global.awsService = %s;

		load.log("AWS Signature v4 configured", load.LogLevel.info);
	`, s.value(cfg.Get("accessKey", "accessKeyId")), s.value(cfg.Get("secretKey", "secretAccessKey")),
		session, strconv.Quote(region), strconv.Quote(service))
}

func (s snippet) digest(cfg *Config) string {
	realm := ""
	if v := cfg.Get("realm"); v != "" {
		realm = fmt.Sprintf("\n    realm: %s,", strconv.Quote(v))
	}
	return heredoc.Docf(`
		// Digest Authentication
		// DevWeb answers digest challenges from the user credentials
		load.setUserCredentials({
		    username: %s,
		    password: %s,%s
		    host: "*"
		});

		load.log("Digest Auth configured", load.LogLevel.info);
	`, s.value(cfg.Get("username")), s.value(cfg.Get("password")), realm)
}

// generic comments out the raw config for types without a template.
func generic(cfg *Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "// %s Authentication\n", strings.ToUpper(string(cfg.Type)))
	b.WriteString("// Custom authentication - configure as needed\n")
	data, err := json.MarshalIndent(cfg.Values, "", "  ")
	if err != nil {
		data = []byte("{}")
	}
	for _, line := range strings.Split(string(data), "\n") {
		b.WriteString("// " + line + "\n")
	}
	return b.String()
}
