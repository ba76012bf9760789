package collection

import (
	"bytes"
	"encoding/json"
	"strings"
)

// text accepts any JSON scalar; exporters are inconsistent about quoting
// numbers and booleans in variable and header values.
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*t = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = text(s)
	case data[0] == '{':
		var desc struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal(data, &desc); err == nil && desc.Content != "" {
			*t = text(desc.Content)
			return nil
		}
		*t = text(data)
	default:
		*t = text(data)
	}
	return nil
}

// lines accepts a script body either as a string or as an array of lines.
type lines string

func (l *lines) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = ""
		return nil
	}
	if data[0] == '[' {
		var parts []string
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		*l = lines(strings.Join(parts, "\n"))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*l = lines(s)
	return nil
}

type rawDocument struct {
	Info *struct {
		Name   string `json:"name"`
		Schema string `json:"schema"`
	} `json:"info"`
	Name     string          `json:"name"`
	Item     []rawItem       `json:"item"`
	Items    []rawItem       `json:"items"`
	Variable []rawKV         `json:"variable"`
	Auth     json.RawMessage `json:"auth"`
	Request  json.RawMessage `json:"request"`
	Root     *rawBrunoRoot   `json:"root"`
	Event    []rawEvent      `json:"event"`
}

type rawBrunoRoot struct {
	Request *struct {
		Auth json.RawMessage `json:"auth"`
		Vars *struct {
			Req []rawKV `json:"req"`
		} `json:"vars"`
	} `json:"request"`
}

type rawItem struct {
	Name        string          `json:"name"`
	ID          string          `json:"id"`
	UID         string          `json:"uid"`
	Type        string          `json:"type"`
	Description text            `json:"description"`
	Request     json.RawMessage `json:"request"`
	Item        []rawItem       `json:"item"`
	Items       []rawItem       `json:"items"`
	Event       []rawEvent      `json:"event"`
	Auth        json.RawMessage `json:"auth"`
	Response    []rawResponse   `json:"response"`
	Root        *rawBrunoRoot   `json:"root"`
}

func (it rawItem) children() []rawItem {
	if len(it.Item) > 0 {
		return it.Item
	}
	return it.Items
}

func (it rawItem) isFolder() bool {
	return it.Item != nil || it.Items != nil || it.Type == "folder"
}

type rawRequest struct {
	Method           string          `json:"method"`
	URL              json.RawMessage `json:"url"`
	Header           json.RawMessage `json:"header"`
	Headers          json.RawMessage `json:"headers"`
	Body             *rawBody        `json:"body"`
	Auth             json.RawMessage `json:"auth"`
	Description      text            `json:"description"`
	PreRequestScript lines           `json:"preRequestScript"`
	Script           *struct {
		Req lines `json:"req"`
		Res lines `json:"res"`
	} `json:"script"`
	Tests lines `json:"tests"`
}

type rawURL struct {
	Raw      string          `json:"raw"`
	Protocol string          `json:"protocol"`
	Host     json.RawMessage `json:"host"`
	Path     json.RawMessage `json:"path"`
	Query    []rawKV         `json:"query"`
}

type rawKV struct {
	Key      text   `json:"key"`
	Name     text   `json:"name"`
	Value    text   `json:"value"`
	Type     string `json:"type"`
	Disabled bool   `json:"disabled"`
	Enabled  *bool  `json:"enabled"`
}

func (kv rawKV) key() string {
	if kv.Key != "" {
		return string(kv.Key)
	}
	return string(kv.Name)
}

func (kv rawKV) disabled() bool {
	if kv.Disabled {
		return true
	}
	return kv.Enabled != nil && !*kv.Enabled
}

type rawBody struct {
	Mode           string  `json:"mode"`
	Raw            string  `json:"raw"`
	JSON           string  `json:"json"`
	Text           string  `json:"text"`
	XML            string  `json:"xml"`
	URLEncoded     []rawKV `json:"urlencoded"`
	FormURLEncoded []rawKV `json:"formUrlEncoded"`
	FormData       []rawKV `json:"formdata"`
	MultipartForm  []rawKV `json:"multipartForm"`
	GraphQL        *struct {
		Query     string          `json:"query"`
		Variables json.RawMessage `json:"variables"`
	} `json:"graphql"`
}

type rawEvent struct {
	Listen string `json:"listen"`
	Script *struct {
		Exec lines `json:"exec"`
	} `json:"script"`
}

type rawResponse struct {
	Header  json.RawMessage `json:"header"`
	Headers json.RawMessage `json:"headers"`
	Body    string          `json:"body"`
}
