package http

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"
	"github.com/saintfish/chardet"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/infrastructure/logging"
)

const proxyPath = "/api/extensions/proxy?url="

// interceptorScript is injected into proxied HTML so that dynamic
// requests made by the page (fetch, XHR) also route back through the
// proxy, resolved against the original origin rather than ours.
const interceptorScript = `(function() {
    const PROXY_BASE = %q;
    const ORIGINAL_BASE = %q;

    function wrapUrl(url) {
        if (!url || typeof url !== 'string') return url;
        if (url.startsWith('data:') || url.startsWith('blob:') || url.startsWith('mailto:')) return url;
        if (url.startsWith(window.location.origin + PROXY_BASE)) return url;
        try {
            const absoluteUrl = new URL(url, ORIGINAL_BASE).href;
            return PROXY_BASE + encodeURIComponent(absoluteUrl);
        } catch (e) {
            return url;
        }
    }

    const originalFetch = window.fetch;
    window.fetch = function(input, init) {
        if (typeof input === 'string') {
            input = wrapUrl(input);
        } else if (input instanceof Request) {
            input = new Request(wrapUrl(input.url), input);
        }
        return originalFetch(input, init);
    };

    const originalOpen = XMLHttpRequest.prototype.open;
    XMLHttpRequest.prototype.open = function(method, url, ...args) {
        return originalOpen.apply(this, [method, wrapUrl(url), ...args]);
    };
})();`

// Proxy fetches and relays remote content for extension frames. HTML
// responses are rewritten so relative asset references resolve back
// through the proxy; everything else passes through with permissive
// CORS headers so the frame can consume it.
type Proxy struct {
	client   *resty.Client
	maxBody  int64
	detector *chardet.Detector
	logger   *logging.Logger
}

// NewProxy creates the proxy with a bounded response size.
func NewProxy(maxBodyBytes int64, logger *logging.Logger) *Proxy {
	client := resty.New().
		SetHeader("User-Agent", "ExtensionHostProxy/1.0").
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))

	return &Proxy{
		client:   client,
		maxBody:  maxBodyBytes,
		detector: chardet.NewTextDetector(),
		logger:   logger,
	}
}

// Handle handles GET /api/extensions/proxy?url=
func (p *Proxy) Handle(c *gin.Context) {
	target := c.Query("url")
	if target == "" {
		c.String(http.StatusBadRequest, "missing 'url' parameter")
		return
	}

	parsed, err := url.Parse(target)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		c.String(http.StatusBadRequest, "invalid url")
		return
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		c.String(http.StatusBadRequest, "unsupported scheme")
		return
	}

	resp, err := p.client.R().
		SetContext(c.Request.Context()).
		SetHeader("Accept-Language", c.GetHeader("Accept-Language")).
		Get(target)
	if err != nil {
		c.String(http.StatusBadGateway, "upstream fetch failed")
		return
	}

	body := resp.Body()
	if int64(len(body)) > p.maxBody {
		c.String(http.StatusBadGateway, "upstream response too large")
		return
	}
	contentType := resp.Header().Get("Content-Type")

	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "*")

	if !strings.Contains(contentType, "text/html") {
		c.Data(resp.StatusCode(), contentType, body)
		return
	}

	rewritten, err := p.rewriteHTML(body, contentType, target)
	if err != nil {
		p.logger.Warn("HTML rewrite failed, passing through", zap.String("url", target), zap.Error(err))
		c.Data(resp.StatusCode(), contentType, body)
		return
	}
	c.Data(resp.StatusCode(), "text/html; charset=utf-8", rewritten)
}

// rewriteHTML decodes the page to UTF-8, points relative references at
// the proxy and injects the interceptor script.
func (p *Proxy) rewriteHTML(body []byte, contentType, target string) ([]byte, error) {
	utf8Body, err := p.decode(body, contentType)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(utf8Body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	baseURL, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	// Directory-like targets need a trailing slash for relative joins.
	if last := baseURL.Path[strings.LastIndex(baseURL.Path, "/")+1:]; last != "" && !strings.Contains(last, ".") {
		baseURL.Path += "/"
	}

	// A <base> tag would re-anchor relative references around the
	// rewrite; drop it.
	doc.Find("base").Remove()

	doc.Find("script, link, img, source, iframe, a").Each(func(_ int, sel *goquery.Selection) {
		for _, attr := range []string{"src", "href"} {
			val, exists := sel.Attr(attr)
			if !exists || val == "" {
				continue
			}
			if strings.HasPrefix(val, "http") || strings.HasPrefix(val, "//") ||
				strings.HasPrefix(val, "data:") || strings.HasPrefix(val, "blob:") ||
				strings.HasPrefix(val, "mailto:") || strings.HasPrefix(val, "#") {
				continue
			}
			ref, err := url.Parse(val)
			if err != nil {
				continue
			}
			abs := baseURL.ResolveReference(ref).String()
			sel.SetAttr(attr, proxyPath+url.QueryEscape(abs))
		}
	})

	script := fmt.Sprintf(interceptorScript, proxyPath, baseURL.String())
	tag := "<script>" + script + "</script>"
	if bodySel := doc.Find("body"); bodySel.Length() > 0 {
		bodySel.PrependHtml(tag)
	} else {
		doc.Selection.AppendHtml(tag)
	}

	out, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("serialize html: %w", err)
	}
	return []byte(out), nil
}

// decode converts the upstream body to UTF-8. The declared charset
// wins; otherwise the detector guesses from content.
func (p *Proxy) decode(body []byte, contentType string) ([]byte, error) {
	label := ""
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		label = params["charset"]
	}
	if label == "" {
		if result, err := p.detector.DetectBest(body); err == nil {
			label = result.Charset
		}
	}
	if label == "" || strings.EqualFold(label, "utf-8") {
		return body, nil
	}

	enc, _ := charset.Lookup(label)
	if enc == nil {
		return body, nil
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", label, err)
	}
	return decoded, nil
}
