package analyzer

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// app.get('/p'), fastify.post("/p"), r.GET("/p"), @router.put('/p')
	routerCallRe = regexp.MustCompile("(?i)\\b(\\w+)\\.(get|post|put|patch|delete|options|head|all)\\(\\s*['\"`](/[^'\"`]*)['\"`]")

	// Receivers of outgoing requests: axios.get('/p'), this.http.post('/p').
	clientReceivers = map[string]bool{
		"axios": true, "http": true, "https": true, "httpclient": true,
		"client": true, "apiclient": true, "api": true, "request": true,
		"requests": true, "ky": true, "superagent": true, "fetcher": true,
	}

	// @app.route('/p', methods=['GET', 'POST'])
	flaskRouteRe = regexp.MustCompile(`@\w+\.route\(\s*['"](/[^'"]*)['"]([^)]*)\)`)
	methodsRe    = regexp.MustCompile(`methods\s*=\s*[\[(]([^\])]*)[\])]`)
	quotedRe     = regexp.MustCompile(`['"](\w+)['"]`)

	// http.HandleFunc("/p", h), mux.Handle("POST /p", h)
	handleFuncRe = regexp.MustCompile(`\b(?:HandleFunc|Handle)\(\s*"([^"]+)"`)
)

// DetectEndpoints returns the HTTP endpoints a source file registers, as
// "[METHOD] /path" strings in first-seen order.
func DetectEndpoints(src string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(method, path string) {
		e := fmt.Sprintf("[%s] %s", strings.ToUpper(method), path)
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}

	for _, m := range routerCallRe.FindAllStringSubmatch(src, -1) {
		if clientReceivers[strings.ToLower(m[1])] {
			continue
		}
		add(m[2], m[3])
	}
	for _, m := range flaskRouteRe.FindAllStringSubmatch(src, -1) {
		methods := []string{"GET"}
		if mm := methodsRe.FindStringSubmatch(m[2]); mm != nil {
			if q := quotedRe.FindAllStringSubmatch(mm[1], -1); len(q) > 0 {
				methods = methods[:0]
				for _, s := range q {
					methods = append(methods, s[1])
				}
			}
		}
		for _, method := range methods {
			add(method, m[1])
		}
	}
	for _, m := range handleFuncRe.FindAllStringSubmatch(src, -1) {
		pattern := m[1]
		method := "ANY"
		if i := strings.IndexByte(pattern, ' '); i > 0 && !strings.HasPrefix(pattern, "/") {
			method, pattern = pattern[:i], strings.TrimSpace(pattern[i+1:])
		}
		if strings.HasPrefix(pattern, "/") {
			add(method, pattern)
		}
	}
	return out
}
