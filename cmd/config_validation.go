package cmd

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"

	"github.com/Laisky/agency-site/library/mail"
)

const minSecretLen = 16

// configGetter retrieves raw configuration values by dotted key path.
type configGetter func(key string) any

// validateStartupConfig validates startup configuration from the shared config source.
// It returns an error listing every malformed key.
func validateStartupConfig() error {
	return validateStartupConfigWithGetter(func(key string) any {
		return gconfig.Shared.Get(key)
	})
}

// validateStartupConfigWithGetter validates startup configuration via a key-value getter.
func validateStartupConfigWithGetter(get configGetter) error {
	if get == nil {
		return errors.New("config getter is nil")
	}

	validationErrs := make([]string, 0)

	validateSecretConfig(get, &validationErrs)
	validateDBConfig(get, &validationErrs)
	validateAuthConfig(get, &validationErrs)
	validateMailConfig(get, &validationErrs)
	validateSiteConfig(get, &validationErrs)
	validateWebSiteConfig(get, &validationErrs)

	if len(validationErrs) == 0 {
		return nil
	}

	return errors.Errorf("invalid configuration:\n - %s", strings.Join(validationErrs, "\n - "))
}

// validateSecretConfig requires the token signing secret.
func validateSecretConfig(get configGetter, errs *[]string) {
	secret, err := parseStrictString(get("settings.secret"))
	if err != nil || strings.TrimSpace(secret) == "" {
		appendValidationError(errs, "settings.secret is required")
		return
	}

	if len(secret) < minSecretLen {
		appendValidationError(errs, "settings.secret must be at least %d characters", minSecretLen)
	}
}

// validateDBConfig validates the document store backend and the optional redis.
func validateDBConfig(get configGetter, errs *[]string) {
	validateOptionalIntMin(get, "settings.db.redis.db", 0, errs)

	backend := ""
	if raw := get("settings.db.backend"); raw != nil {
		v, err := parseStrictString(raw)
		if err != nil {
			appendValidationError(errs, "settings.db.backend must be a string")
			return
		}
		backend = strings.ToLower(strings.TrimSpace(v))
	}

	switch backend {
	case "", "memory":
	case "firestore":
		validateRequiredString(get, "settings.db.firestore.project_id", errs)
	case "mongo":
		validateRequiredString(get, "settings.db.mongo.addr", errs)
		validateRequiredString(get, "settings.db.mongo.db", errs)
	default:
		appendValidationError(errs, "settings.db.backend must be one of [firestore, mongo, memory]")
	}
}

// validateAuthConfig validates OTP and session lifetimes.
func validateAuthConfig(get configGetter, errs *[]string) {
	for _, key := range []string{
		"settings.auth.otp.ttl",
		"settings.auth.otp.resend_interval",
		"settings.auth.session_ttl",
	} {
		validateOptionalDuration(get, key, errs)
	}

	validateOptionalIntMin(get, "settings.auth.otp.max_attempts", 1, errs)
}

// validateMailConfig validates the mail provider and its credentials.
func validateMailConfig(get configGetter, errs *[]string) {
	provider := ""
	if raw := get("settings.mail.provider"); raw != nil {
		v, err := parseStrictString(raw)
		if err != nil {
			appendValidationError(errs, "settings.mail.provider must be a string")
			return
		}
		provider = strings.ToLower(strings.TrimSpace(v))
	}

	switch provider {
	case "", "log":
	case "postmark":
		validateRequiredString(get, "settings.mail.postmark.api_key", errs)
	case "smtp":
		validateRequiredString(get, "settings.mail.smtp.host", errs)
		validateOptionalIntRange(get, "settings.mail.smtp.port", 1, math.MaxUint16, errs)
	default:
		appendValidationError(errs, "settings.mail.provider must be one of [postmark, smtp, log]")
	}

	if raw := get("settings.mail.from"); raw != nil {
		from, err := parseStrictString(raw)
		if err != nil {
			appendValidationError(errs, "settings.mail.from must be a string")
		} else if _, err = mail.ValidAddress(from); err != nil {
			appendValidationError(errs, "settings.mail.from must be a valid email address")
		}
	}

	if raw := get("settings.mail.admin_recipients"); raw != nil {
		recipients, ok := toStringSlice(raw)
		if !ok {
			appendValidationError(errs, "settings.mail.admin_recipients must be a list of email addresses")
			return
		}
		for i, addr := range recipients {
			if _, err := mail.ValidAddress(addr); err != nil {
				appendValidationError(errs, "settings.mail.admin_recipients[%d] must be a valid email address", i)
			}
		}
	}
}

// validateSiteConfig validates public site and lead intake settings.
func validateSiteConfig(get configGetter, errs *[]string) {
	validateOptionalURL(get, "settings.site.url", errs)
	validateOptionalStringNonEmpty(get, "settings.site.name", errs)
	validateOptionalIntMin(get, "settings.leads.rate_limit.per_hour", 1, errs)

	if raw := get("settings.site.services"); raw != nil && toStringMap(raw) == nil {
		appendValidationError(errs, "settings.site.services must be an object")
	}
	if raw := get("settings.site.pricing"); raw != nil {
		plans := toStringMap(raw)
		if plans == nil {
			appendValidationError(errs, "settings.site.pricing must be an object")
			return
		}

		ids := make([]string, 0, len(plans))
		for id := range plans {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			validateOptionalBool(get, "settings.site.pricing."+id+".highlighted", errs)
			validateOptionalIntMin(get, "settings.site.pricing."+id+".order", 0, errs)
		}
	}
}

// validateWebSiteConfig validates site routing, captcha keys and CORS.
func validateWebSiteConfig(get configGetter, errs *[]string) {
	validateOptionalStringNonEmpty(get, "settings.web.turnstile.secret_key", errs)

	if raw := get("settings.web.cors.allowed_domains"); raw != nil {
		if _, ok := toStringSlice(raw); !ok {
			appendValidationError(errs, "settings.web.cors.allowed_domains must be a list of domains")
		}
	}

	rawSites := get("settings.web.sites")
	if rawSites == nil {
		return
	}

	sites := toStringMap(rawSites)
	if sites == nil {
		appendValidationError(errs, "settings.web.sites must be an object")
		return
	}

	defaults := 0
	for siteKey, siteVal := range sites {
		siteCfg := toStringMap(siteVal)
		if siteCfg == nil {
			appendValidationError(errs, "settings.web.sites.%s must be an object", siteKey)
			continue
		}

		if hostVal, ok := siteCfg["host"]; ok {
			host, parseErr := parseStrictString(hostVal)
			if parseErr != nil || !isValidHost(host) {
				appendValidationError(errs, "settings.web.sites.%s.host must be a valid host", siteKey)
			}
		}

		if hostsVal, ok := siteCfg["hosts"]; ok {
			hosts, isList := toStringSlice(hostsVal)
			if !isList {
				appendValidationError(errs, "settings.web.sites.%s.hosts must be a list of hosts", siteKey)
			}
			for _, host := range hosts {
				if !isValidHost(host) {
					appendValidationError(errs, "settings.web.sites.%s.hosts contains invalid host %q", siteKey, host)
				}
			}
		}

		if urlVal, ok := siteCfg["url"]; ok {
			raw, parseErr := parseStrictString(urlVal)
			if parseErr != nil || !isAbsoluteURL(raw) {
				appendValidationError(errs, "settings.web.sites.%s.url must be a valid absolute URL", siteKey)
			}
		}

		if defVal, ok := siteCfg["default"]; ok {
			isDefault, parsed := parseStrictBool(defVal)
			if !parsed {
				appendValidationError(errs, "settings.web.sites.%s.default must be a boolean", siteKey)
			} else if isDefault {
				defaults++
			}
		}
	}

	if defaults > 1 {
		appendValidationError(errs, "settings.web.sites must not mark more than one site as default")
	}
}

// validateRequiredString validates that a key is set to a non-empty string.
func validateRequiredString(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		appendValidationError(errs, "%s is required", key)
		return
	}

	value, parseErr := parseStrictString(raw)
	if parseErr != nil || strings.TrimSpace(value) == "" {
		appendValidationError(errs, "%s must be a non-empty string", key)
	}
}

// validateOptionalDuration validates an optionally configured positive duration such as "5m".
func validateOptionalDuration(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictString(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be a duration string", key)
		return
	}

	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		appendValidationError(errs, "%s must be a duration like 5m or 24h", key)
		return
	}
	if d <= 0 {
		appendValidationError(errs, "%s must be > 0", key)
	}
}

// validateOptionalIntRange validates an optionally configured integer within [min, max].
func validateOptionalIntRange(get configGetter, key string, min, max int, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictInt(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be an integer", key)
		return
	}

	if value < min || value > max {
		appendValidationError(errs, "%s must be within [%d, %d]", key, min, max)
	}
}

// validateOptionalBool validates an optionally configured boolean key.
// It accepts a getter, the key, and an error collector pointer and appends validation errors.
func validateOptionalBool(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	if _, ok := parseStrictBool(raw); !ok {
		appendValidationError(errs, "%s must be a boolean", key)
	}
}

// validateOptionalIntMin validates an optionally configured integer key with a minimum constraint.
// It accepts a getter, the key, a minimum value, and an error collector pointer and appends validation errors.
func validateOptionalIntMin(get configGetter, key string, min int, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictInt(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be an integer", key)
		return
	}

	if value < min {
		appendValidationError(errs, "%s must be >= %d", key, min)
	}
}

// validateOptionalURL validates an optionally configured absolute URL key.
// It accepts a getter, the key, and an error collector pointer and appends validation errors.
func validateOptionalURL(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictString(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be a string URL", key)
		return
	}

	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		appendValidationError(errs, "%s must not be empty", key)
		return
	}

	if !isAbsoluteURL(trimmed) {
		appendValidationError(errs, "%s must be a valid absolute URL", key)
	}
}

// validateOptionalStringNonEmpty validates an optionally configured non-empty string key.
// It accepts a getter, the key, and an error collector pointer and appends validation errors.
func validateOptionalStringNonEmpty(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictString(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be a string", key)
		return
	}

	if strings.TrimSpace(value) == "" {
		appendValidationError(errs, "%s must not be empty", key)
	}
}

// parseStrictBool parses a value as boolean using strict conversion rules.
// It accepts a raw value and returns the parsed boolean and whether parsing succeeded.
func parseStrictBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case int:
		return v != 0, true
	case int64:
		return v != 0, true
	case float64:
		if math.Trunc(v) != v {
			return false, false
		}
		return int64(v) != 0, true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return false, false
		}
		parsed, err := strconv.ParseBool(trimmed)
		if err != nil {
			return false, false
		}
		return parsed, true
	default:
		return false, false
	}
}

// parseStrictInt parses a value as a strict integer.
// It accepts a raw value and returns the parsed int and an error when parsing fails.
func parseStrictInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if math.Trunc(v) != v {
			return 0, errors.Errorf("%v is not an integer", v)
		}
		return int(v), nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, errors.New("empty integer string")
		}
		parsed, err := strconv.Atoi(trimmed)
		if err != nil {
			return 0, errors.Wrap(err, "atoi")
		}
		return parsed, nil
	default:
		return 0, errors.Errorf("unsupported int type %T", value)
	}
}

// parseStrictString parses a value as a strict string.
// It accepts a raw value and returns the parsed string and an error when parsing fails.
func parseStrictString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", errors.Errorf("unsupported string type %T", value)
	}
}

// isValidHost validates a host string without scheme or path components.
// It accepts a host string and returns true when the host is syntactically acceptable.
func isValidHost(host string) bool {
	trimmed := strings.TrimSpace(host)
	if trimmed == "" {
		return false
	}
	if strings.Contains(trimmed, "://") || strings.Contains(trimmed, "/") {
		return false
	}
	return true
}

// appendValidationError appends a formatted validation error to the collector.
// It accepts an error slice pointer, a format string, and format arguments, and has no return value.
func appendValidationError(errs *[]string, format string, args ...any) {
	if errs == nil {
		return
	}
	*errs = append(*errs, fmt.Sprintf(format, args...))
}

// toStringMap converts yaml decoded objects into a string keyed map.
// It returns nil when the value is not an object.
func toStringMap(value any) map[string]any {
	switch v := value.(type) {
	case map[string]any:
		return v
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[fmt.Sprint(k)] = val
		}
		return out
	default:
		return nil
	}
}

// toStringSlice converts a yaml list of strings.
// It reports false when the value is not a list or holds non-string items.
func toStringSlice(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, err := parseStrictString(item)
			if err != nil {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func isAbsoluteURL(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	return err == nil && (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
