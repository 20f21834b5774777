package entitlements

import (
	"github.com/cryptogate/cryptogate/app/models"
)

// NoPackageDisplayName is shown for clients without a package.
const NoPackageDisplayName = "No Package"

// The helpers below back the template and admin UI layer. They are pure
// queries over the client and never touch storage.

// ClientHasFeature reports whether the client has feature name.
func ClientHasFeature(c *models.Client, name string) bool {
	return defaultResolver.HasFeature(c, name)
}

// ClientFeatures returns the client's effective tokens: package tokens in
// catalog order, followed by overrides not already granted.
func (r *Resolver) ClientFeatures(c *models.Client) []string {
	if c == nil {
		return []string{}
	}
	var tokens []string
	if c.HasPackage() {
		tokens = r.catalog.PackageFeatures(c.Package.Slug)
	}
	seen := make(map[string]struct{}, len(tokens)+len(c.FeaturesOverride))
	out := make([]string, 0, len(tokens)+len(c.FeaturesOverride))
	for _, group := range [][]string{tokens, c.Overrides()} {
		for _, raw := range group {
			t := ParseFeature(raw).Token()
			if t == "" {
				continue
			}
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// ClientFeatures is the built-in catalog variant of Resolver.ClientFeatures.
func ClientFeatures(c *models.Client) []string {
	return defaultResolver.ClientFeatures(c)
}

// PackageDisplayName returns the name shown for the client's package.
func (r *Resolver) PackageDisplayName(c *models.Client) string {
	if !c.HasPackage() {
		return NoPackageDisplayName
	}
	if c.Package.Name != "" {
		return c.Package.Name
	}
	if t, ok := r.catalog.Tier(c.Package.Slug); ok && t.DisplayName != "" {
		return t.DisplayName
	}
	return c.Package.Slug
}

// PackageDisplayName is the built-in catalog variant of Resolver.PackageDisplayName.
func PackageDisplayName(c *models.Client) string {
	return defaultResolver.PackageDisplayName(c)
}

// UpgradePackageName returns the display name of the next tier up in the
// same billing mode, or "" when the client has no package or is on the top tier.
func (r *Resolver) UpgradePackageName(c *models.Client) string {
	if !c.HasPackage() {
		return ""
	}
	next, ok := r.catalog.NextTier(c.Package.Slug)
	if !ok {
		return ""
	}
	return next.DisplayName
}

// UpgradePackageName is the built-in catalog variant of Resolver.UpgradePackageName.
func UpgradePackageName(c *models.Client) string {
	return defaultResolver.UpgradePackageName(c)
}

// TemplateFuncs exposes the helpers to html templates.
func (r *Resolver) TemplateFuncs() map[string]interface{} {
	return map[string]interface{}{
		"client_has_feature":       r.HasFeature,
		"get_client_features":      r.ClientFeatures,
		"get_package_display_name": r.PackageDisplayName,
		"get_upgrade_package_name": r.UpgradePackageName,
	}
}
