// Package catalog holds the declared set of launchable class paths and
// resolves partial names against it.
package catalog

import "strings"

// Entry is one class path and whether it belongs to the default launch set.
type Entry struct {
	ClassPath string
	Enabled   bool
}

// Catalog is an ordered list of entries. Order matters: resolution scans it
// in declared order and returns the first substring match, so a map (which
// has no stable iteration order) cannot stand in for it.
type Catalog []Entry

// DefaultCatalog returns the launcher's built-in class catalog, translated
// from the original ALL_CLASSES table.
func DefaultCatalog() Catalog {
	return Catalog{
		{"com.balihoo.fulfillment.deciders.coordinator", true},
		{"com.balihoo.fulfillment.workers.adwords_accountcreator", true},
		{"com.balihoo.fulfillment.workers.adwords_accountlookup", true},
		{"com.balihoo.fulfillment.workers.adwords_adgroupprocessor", true},
		{"com.balihoo.fulfillment.workers.adwords_campaignprocessor", true},
		{"com.balihoo.fulfillment.workers.adwords_imageadprocessor", true},
		{"com.balihoo.fulfillment.workers.adwords_textadprocessor", true},
		{"com.balihoo.fulfillment.workers.geonames_timezoneretriever", true},
		{"com.balihoo.fulfillment.workers.htmlrenderer", true},
		{"com.balihoo.fulfillment.workers.layoutrenderer", false},
		{"com.balihoo.fulfillment.workers.email_addressverifier", false},
		{"com.balihoo.fulfillment.workers.email_sender", false},
		{"com.balihoo.fulfillment.workers.email_verifiedaddresslister", false},
		{"com.balihoo.fulfillment.workers.facebook_poster", false},
		{"com.balihoo.fulfillment.workers.ftp_uploader", false},
		{"com.balihoo.fulfillment.workers.ftp_uploadvalidator", false},
		{"com.balihoo.fulfillment.workers.rest_client", true},
		{"com.balihoo.fulfillment.workers.benchmark", false},
		{"com.balihoo.fulfillment.workers.sendgrid_lookupsubaccount", false},
		{"com.balihoo.fulfillment.dashboard.dashboard", false},
	}
}

// DefaultLaunchSet returns the enabled subset, in declared order.
func (c Catalog) DefaultLaunchSet() []string {
	var names []string
	for _, e := range c {
		if e.Enabled {
			names = append(names, e.ClassPath)
		}
	}
	return names
}

// Contains reports whether classPath is an exact entry in the catalog.
func (c Catalog) Contains(classPath string) bool {
	for _, e := range c {
		if e.ClassPath == classPath {
			return true
		}
	}
	return false
}

// Resolve maps a partial (or exact) class name to a fully qualified class
// path. An exact match wins; otherwise the catalog is scanned in declared
// order and the first entry whose class path contains name as a substring is
// returned. If nothing matches, name is passed through unchanged: it may be
// a main class that simply isn't in the catalog.
//
// Resolve is idempotent: Resolve(Resolve(x)) == Resolve(x), since a fully
// qualified class path always contains itself as a substring and, being a
// catalog entry when matched, takes the exact-match branch on the second
// call.
func (c Catalog) Resolve(name string) string {
	if c.Contains(name) {
		return name
	}
	for _, e := range c {
		if strings.Contains(e.ClassPath, name) {
			return e.ClassPath
		}
	}
	return name
}
