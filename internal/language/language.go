package language

import "strings"

// tongue describes one language the pipeline can label. alt3 carries the
// legacy ISO 639-2/B code where it differs from the terminological one.
type tongue struct {
	iso2    string
	alt3    string
	display string
}

// byISO3 is keyed by the primary ISO 639-2 code reported in scan output.
var byISO3 = map[string]tongue{
	"eng": {"en", "", "English"},
	"spa": {"es", "", "Spanish"},
	"fra": {"fr", "fre", "French"},
	"deu": {"de", "ger", "German"},
	"ita": {"it", "", "Italian"},
	"por": {"pt", "", "Portuguese"},
	"jpn": {"ja", "", "Japanese"},
	"kor": {"ko", "", "Korean"},
	"zho": {"zh", "chi", "Chinese"},
	"rus": {"ru", "", "Russian"},
	"ara": {"ar", "", "Arabic"},
	"hin": {"hi", "", "Hindi"},
	"nld": {"nl", "dut", "Dutch"},
	"pol": {"pl", "", "Polish"},
	"swe": {"sv", "", "Swedish"},
	"dan": {"da", "", "Danish"},
	"nor": {"no", "", "Norwegian"},
	"fin": {"fi", "", "Finnish"},
}

// Secondary indexes derived from byISO3 at init time.
var (
	iso3ByAlias = map[string]string{}
)

func init() {
	for iso3, entry := range byISO3 {
		iso3ByAlias[entry.iso2] = iso3
		if entry.alt3 != "" {
			iso3ByAlias[entry.alt3] = iso3
		}
		iso3ByAlias[strings.ToLower(entry.display)] = iso3
	}
}

func resolve(code string) (string, tongue, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return "", tongue{}, false
	}
	if entry, ok := byISO3[code]; ok {
		return code, entry, true
	}
	if iso3, ok := iso3ByAlias[code]; ok {
		return iso3, byISO3[iso3], true
	}
	return code, tongue{}, false
}

// ToISO2 converts any recognized language code or name to ISO 639-1.
// Unrecognized two-letter input passes through; anything else yields "".
func ToISO2(code string) string {
	normalized, entry, ok := resolve(code)
	if ok {
		return entry.iso2
	}
	if len(normalized) == 2 {
		return normalized
	}
	return ""
}

// ToISO3 converts any recognized language code or name to the primary
// ISO 639-2 code. Unrecognized three-letter input passes through; anything
// else yields "und".
func ToISO3(code string) string {
	normalized, _, ok := resolve(code)
	if ok {
		return normalized
	}
	if len(normalized) == 3 {
		return normalized
	}
	return "und"
}

// DisplayName returns a human-readable name for any recognized code.
// Unrecognized input is uppercased; empty input yields "Unknown".
func DisplayName(code string) string {
	normalized, entry, ok := resolve(code)
	if ok {
		return entry.display
	}
	if normalized == "" {
		return "Unknown"
	}
	return strings.ToUpper(normalized)
}
