package sync

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/biter777/countries"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/ttacon/libphonenumber"
)

func init() {

	gjson.AddModifier("countryName", func(json, arg string) string {
		s := gjson.Parse(json).String()
		c := countries.ByName(s) // will match on Alpha-2 / Alpha-3 / Name
		if countries.Unknown == c {
			return ""
		}
		return fmt.Sprintf(`"%s"`, c.String())
	})

	gjson.AddModifier("countryCode", func(json, arg string) string {
		s := gjson.Parse(json).String()
		c := countries.ByName(s)
		if countries.Unknown == c {
			return ""
		}
		return fmt.Sprintf(`"%s"`, c.Alpha2())
	})

	// phone formats a number as E.164, using arg as the default country calling code
	gjson.AddModifier("phone", func(json, arg string) string {
		number := strings.Trim(gjson.Parse(json).String(), `"`)
		if number == "" {
			return ""
		}
		region := "ZZ"
		if i, err := strconv.Atoi(arg); err == nil {
			region = libphonenumber.GetRegionCodeForCountryCode(i)
		}
		num, err := libphonenumber.Parse(number, region)
		if err != nil {
			log.WithError(err).WithField("country_code", arg).Debug("Failed to parse phone number.")
			return ""
		}
		return fmt.Sprintf(`"%s"`, libphonenumber.Format(num, libphonenumber.E164))
	})

	// int parses numeric strings such as "42" or "42.0", the CRM returns most numbers as strings
	gjson.AddModifier("int", func(json, arg string) string {
		res := gjson.Parse(json)
		if !res.Exists() {
			return ""
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(res.String()), 64); err == nil {
			return fmt.Sprintf("%d", int64(f))
		}
		if arg != "" {
			if _, err := strconv.ParseInt(arg, 10, 64); err == nil {
				return arg
			}
		}
		return ""
	})

	gjson.AddModifier("contains", func(json, arg string) string {
		res := gjson.Parse(json)
		if res.IsArray() {
			values := res.Array()
			for _, v := range values {
				if strings.Contains(v.String(), arg) {
					return fmt.Sprintf("%t", true)
				}
			}
			return fmt.Sprintf("%t", false)
		}
		// multi select properties are ; separated strings
		for _, v := range strings.Split(res.String(), ";") {
			if v == arg {
				return fmt.Sprintf("%t", true)
			}
		}
		return fmt.Sprintf("%t", false)
	})

	gjson.AddModifier("gte", func(json, arg string) string {
		res := gjson.Parse(json)
		if !res.Exists() || arg == "" {
			return ""
		}
		f, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return ""
		}
		return fmt.Sprintf("%t", res.Float() >= f)
	})

}
