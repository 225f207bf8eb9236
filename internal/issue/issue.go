// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Id identifies a catalog entry.
type Id int

const (
	PackageNotFoundId Id = iota + 1
	AurRootBuildId
	LocalFileMissingId
	AurBuildFailedId
	RecipeCloneFailedId
	AurUnreachableId
	ConfigLoadFailedId
	PackageManagerMissingId
	PackageHeldId
	OfficialOnlyMissId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id
	mdMsg    MarkdownMsg
	docLinks []HttpLink // Arch wiki pages
	extLinks []HttpLink
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render turns the entry into styled terminal output. stylePath is a glamour
// style name ("dark", "light", "notty") or a path to a JSON style file.
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range append(i.DocLinks(), i.extLinks...) {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	packageNotFoundIssue = &Issue{
		id: PackageNotFoundId,
		mdMsg: `
# Package not found

The package is neither in the official repositories nor in the AUR.

## Things you can try:
- Check the spelling, package names are case sensitive
- Search both sources:
~~~
$ archpkg search <term>
$ archpkg search -a <term>
~~~
- Refresh the sync databases, the package may be new:
~~~
$ archpkg update
~~~`,
		docLinks: []HttpLink{"https://wiki.archlinux.org/title/Pacman#Searching_for_a_package"},
	}

	aurRootBuildIssue = &Issue{
		id: AurRootBuildId,
		mdMsg: `
# Refusing to build AUR packages as root

AUR recipes are arbitrary shell scripts. Building them as the superuser gives
every recipe full control of the system, so archpkg stops the whole batch.

## Things you can try:
- Run archpkg as your regular user, it calls sudo for the install step
- Install only official packages as root:
~~~
# archpkg installarch <packages>
~~~`,
		docLinks: []HttpLink{"https://wiki.archlinux.org/title/Makepkg#Usage"},
	}

	localFileMissingIssue = &Issue{
		id: LocalFileMissingId,
		mdMsg: `
# Package file not found

A path passed to ` + "`install -f`" + ` does not exist or is not a regular file.

## Things you can try:
- Check the path, relative paths are resolved from the current directory
- Built packages are usually named ` + "`<name>-<version>-<arch>.pkg.tar.zst`",
	}

	aurBuildFailedIssue = &Issue{
		id: AurBuildFailedId,
		mdMsg: `
# AUR build failed

makepkg exited with an error while building or installing the package.

## Things you can try:
- Re-run with ` + "`--verbose`" + ` to see the full build output
- Make sure base-devel is installed:
~~~
$ archpkg installarch base-devel
~~~
- Read the package comments on the AUR page, the recipe may be outdated`,
		docLinks: []HttpLink{"https://wiki.archlinux.org/title/Arch_User_Repository#Installing_and_upgrading_packages"},
	}

	recipeCloneFailedIssue = &Issue{
		id: RecipeCloneFailedId,
		mdMsg: `
# Could not clone the build recipe

The package exists in the AUR directory but its git repository could not be
cloned, or it did not contain a PKGBUILD.

## Things you can try:
- Check your network connection to aur.archlinux.org
- Split packages are cloned by their package base, check ` + "`archpkg search -a`" + `
- Try again later, the AUR may be under maintenance`,
	}

	aurUnreachableIssue = &Issue{
		id: AurUnreachableId,
		mdMsg: `
# The AUR could not be reached

Requests to the AUR RPC interface kept failing after several retries. This is
a network or service problem, not a missing package.

## Things you can try:
- Check your connection and DNS
- Raise the retry budget:
~~~cue
aur: retry: attempts: 5
~~~`,
		extLinks: []HttpLink{"https://status.archlinux.org"},
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration

The configuration file exists but could not be parsed or did not match the schema.

## Things you can try:
- Show where archpkg looks for it:
~~~
$ archpkg config path
~~~
- Regenerate a default file:
~~~
$ archpkg config init --force
~~~`,
	}

	packageManagerMissingIssue = &Issue{
		id: PackageManagerMissingId,
		mdMsg: `
# pacman not found

archpkg drives pacman and makepkg and cannot work without them.

## Things you can try:
- Make sure you are on Arch Linux or a derivative
- Point archpkg at a different binary:
~~~cue
pacman: binary: "/usr/bin/pacman"
~~~`,
	}

	packageHeldIssue = &Issue{
		id: PackageHeldId,
		mdMsg: `
# Package is held

The package is on the hold list and was skipped.

## Things you can try:
- Release the hold first:
~~~
$ archpkg unlock <package>
~~~`,
	}

	officialOnlyMissIssue = &Issue{
		id: OfficialOnlyMissId,
		mdMsg: `
# Not in the official repositories

` + "`installarch`" + ` never falls back to the AUR, so the batch stopped at the
first package that could not be installed.

## Things you can try:
- Use ` + "`archpkg install`" + ` to allow the AUR fallback
- Refresh the sync databases with ` + "`archpkg update`",
	}

	issues = map[Id]*Issue{
		packageNotFoundIssue.Id():       packageNotFoundIssue,
		aurRootBuildIssue.Id():          aurRootBuildIssue,
		localFileMissingIssue.Id():      localFileMissingIssue,
		aurBuildFailedIssue.Id():        aurBuildFailedIssue,
		recipeCloneFailedIssue.Id():     recipeCloneFailedIssue,
		aurUnreachableIssue.Id():        aurUnreachableIssue,
		configLoadFailedIssue.Id():      configLoadFailedIssue,
		packageManagerMissingIssue.Id(): packageManagerMissingIssue,
		packageHeldIssue.Id():           packageHeldIssue,
		officialOnlyMissIssue.Id():      officialOnlyMissIssue,
	}
)

// Values returns every catalog entry ordered by Id.
func Values() []*Issue {
	all := slices.Collect(maps.Values(issues))
	slices.SortFunc(all, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return all
}

func Get(id Id) *Issue {
	return issues[id]
}
