// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"

	"github.com/charmbracelet/glamour"
	xslices "golang.org/x/exp/slices"
)

type Id int

const (
	PackageNotFoundId Id = iota + 1
	PackageNotLoadableId
	DescriptorParseErrorId
	UnsupportedVersionId
	NameConflictId
	PackageConflictId
	OverrideCycleId
	DuplicateBindingTypeId
	ConfigLoadFailedId
	BuildFailedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return xslices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return xslices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also:\n"
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "]\n"
		}
		for _, link := range i.extLinks {
			extraMd += "- [" + string(link) + "]\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	packageNotFoundIssue = &Issue{
		id: PackageNotFoundId,
		mdMsg: `
# Package not found!

The install path of a package does not exist, or it points at a file instead
of a directory.

## Things you can try:
- Check the path you passed to the install command:
~~~
$ resmerge package install ./vendor/acme/blog
~~~

- List installed packages and their state:
~~~
$ resmerge package list --state all
~~~

- Remove packages whose directory has been deleted:
~~~
$ resmerge package remove acme/blog
~~~`,
	}

	packageNotLoadableIssue = &Issue{
		id: PackageNotLoadableId,
		mdMsg: `
# Package could not be loaded!

One or more installed packages failed to load. The rest of the project keeps
working; only the broken packages are ignored.

## Things you can try:
- Show the load error of every package:
~~~
$ resmerge package list --state not-loadable --verbose
~~~

- Fix the descriptor (` + "`resmerge.cue`" + `) of the broken package
- Or remove the package from the project`,
	}

	descriptorParseErrorIssue = &Issue{
		id: DescriptorParseErrorId,
		mdMsg: `
# Failed to parse package descriptor!

The ` + "`resmerge.cue`" + ` file contains syntax errors or invalid fields.

## Common issues:
- Invalid CUE syntax (missing quotes, braces, etc.)
- Unknown field names
- Resource paths that do not start with ` + "`/`" + `
- Binding UUIDs that are not valid UUIDs
- ` + "`override-order`" + ` declared outside the root package

## Example of a valid descriptor:
~~~cue
version: "1.0"
name: "acme/blog"

resources: {
  "/app/blog": "res"
}

override: ["acme/base"]
~~~`,
	}

	unsupportedVersionIssue = &Issue{
		id: UnsupportedVersionId,
		mdMsg: `
# Unsupported descriptor version!

The descriptor was written by a newer release and uses a format version this
build cannot read.

## Things you can try:
- Upgrade resmerge
- Or change the ` + "`version`" + ` field back to a supported value:
~~~cue
version: "1.0"
~~~`,
	}

	nameConflictIssue = &Issue{
		id: NameConflictId,
		mdMsg: `
# Package name already in use!

Every package in a project must have a unique name.

## Things you can try:
- Install the package under a different name:
~~~
$ resmerge package install ./vendor/fork --name acme/blog-fork
~~~

- Or remove the package that currently holds the name:
~~~
$ resmerge package remove acme/blog
~~~`,
	}

	packageConflictIssue = &Issue{
		id: PackageConflictId,
		mdMsg: `
# Conflicting resource paths!

Two or more packages map the same resource path and no precedence is declared
between them.

## Option 1: declare an override in one package
~~~cue
name: "acme/theme"
override: ["acme/blog"]
~~~

## Option 2: declare an override order in the root package
Later entries take precedence over earlier ones.
~~~cue
"override-order": ["acme/blog", "acme/theme"]
~~~

## Inspect all open conflicts:
~~~
$ resmerge conflicts
~~~`,
	}

	overrideCycleIssue = &Issue{
		id: OverrideCycleId,
		mdMsg: `
# Override cycle detected!

The override declarations of some packages form a cycle, so no package can win.

## Example cycle:
~~~
acme/blog overrides acme/theme
acme/theme overrides acme/blog
~~~

## Things you can try:
- Remove one of the ` + "`override`" + ` declarations
- Make sure the root ` + "`override-order`" + ` does not contradict package overrides`,
	}

	duplicateBindingTypeIssue = &Issue{
		id: DuplicateBindingTypeId,
		mdMsg: `
# Duplicate binding type!

More than one package defines a binding type with the same name. Neither
definition is used, and every binding of that type is reported as
` + "`type-not-enabled`" + `.

## Things you can try:
- List binding types and the packages that define them:
~~~
$ resmerge type list
~~~

- Remove one of the definitions`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Could not load ` + "`resmerge.config.cue`" + ` from the project root.

## Things you can try:
- Print the effective configuration:
~~~
$ resmerge config show
~~~

- Check placeholders such as ` + "`{$state_dir}`" + ` refer to existing keys
- Remove the config file to use defaults

## Example configuration:
~~~cue
state_dir: ".resmerge"
repository: {
  path:   "{$state_dir}/repository"
  format: "yaml"
}
~~~`,
	}

	buildFailedIssue = &Issue{
		id: BuildFailedId,
		mdMsg: `
# Repository build failed!

The merged repository could not be written. The package registry has not been
changed.

## Things you can try:
- Resolve open conflicts first:
~~~
$ resmerge conflicts
~~~

- Check that ` + "`repository.path`" + ` is writable
- Force a rebuild:
~~~
$ resmerge build --force
~~~`,
	}

	issues = map[Id]*Issue{
		packageNotFoundIssue.Id():      packageNotFoundIssue,
		packageNotLoadableIssue.Id():   packageNotLoadableIssue,
		descriptorParseErrorIssue.Id(): descriptorParseErrorIssue,
		unsupportedVersionIssue.Id():   unsupportedVersionIssue,
		nameConflictIssue.Id():         nameConflictIssue,
		packageConflictIssue.Id():      packageConflictIssue,
		overrideCycleIssue.Id():        overrideCycleIssue,
		duplicateBindingTypeIssue.Id(): duplicateBindingTypeIssue,
		configLoadFailedIssue.Id():     configLoadFailedIssue,
		buildFailedIssue.Id():          buildFailedIssue,
	}
)

// Values returns every known issue ordered by Id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return int(a.id) - int(b.id)
	})
}

func Get(id Id) *Issue {
	return issues[id]
}
