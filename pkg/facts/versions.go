package facts

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/moby/buildkit/frontend/dockerfile/parser"
	"github.com/pelletier/go-toml/v2"

	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/repository"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/value"
)

// Version sections of the component versions map.
const (
	VersionsHelm       = "helm_dependencies"
	VersionsCircleCI   = "circleci"
	VersionsGradle     = "gradle"
	VersionsDockerfile = "dockerfile"
	VersionsPython     = "python"
)

// CircleCIConfigPath is the CircleCI configuration file.
const CircleCIConfigPath = ".circleci/config.yml"

// Version is a dependency reference and the file it was found in.
type Version struct {
	Ref  string `json:"ref"`
	Path string `json:"path"`
}

// VersionSection maps a package name to its version. An empty section means
// the versions were confirmed absent.
type VersionSection map[string]Version

var (
	gradlePlugin = regexp.MustCompile(`(?m)id\(['"]uk\.gov\.justice\.hmpps\.gradle-spring-boot['"]\) version ['"]([^'"]*)['"]( apply false)?\s*$`)

	rdsCACerts = []string{"rds-ca-2019-root.pem", "global-bundle.pem"}
)

// absent turns a not found error into a confirmed empty section.
func absent(err error) (VersionSection, error) {
	if errors.IsNotFound(err) {
		return VersionSection{}, nil
	}
	return nil, err
}

// ChartDependencies reads the dependencies of the component's Helm chart.
func ChartDependencies(ctx context.Context, files repository.Files, c ComponentPaths) (VersionSection, error) {
	dir := c.HelmDir()
	for _, p := range []string{repository.Join(dir, c.Name, "Chart.yaml"), repository.Join(dir, "Chart.yaml")} {
		chart, err := ReadYAML(ctx, files, p)
		if errors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		deps, ok := value.Lookup(chart, "dependencies")
		if !ok {
			continue
		}
		section := VersionSection{}
		if list, ok := deps.(value.Array); ok {
			for _, item := range list {
				name, _ := value.String(item, "name")
				ref, ok := value.Lookup(item, "version")
				if name == "" || !ok {
					continue
				}
				section[name] = Version{Ref: scalarString(ref), Path: p}
			}
		}
		return section, nil
	}
	return VersionSection{}, nil
}

// OrbVersion finds the hmpps CircleCI orb version.
func OrbVersion(ctx context.Context, files repository.Files) (VersionSection, error) {
	config, err := ReadYAML(ctx, files, CircleCIConfigPath)
	if err != nil {
		return absent(err)
	}
	orbs, ok := value.Lookup(config, "orbs")
	if !ok {
		return VersionSection{}, nil
	}
	obj, ok := orbs.(value.Object)
	if !ok {
		return VersionSection{}, nil
	}
	for _, key := range obj.Keys() {
		ref := scalarString(obj[key])
		if !strings.Contains(ref, "ministryofjustice/hmpps") {
			continue
		}
		if _, version, ok := strings.Cut(ref, "@"); ok {
			return VersionSection{"hmpps_orb": {Ref: version, Path: CircleCIConfigPath}}, nil
		}
	}
	return VersionSection{}, nil
}

// GradleVersion finds the hmpps gradle-spring-boot plugin version for JVM
// repositories, skipping declarations marked "apply false".
func GradleVersion(ctx context.Context, files repository.Files, language string) (VersionSection, error) {
	if language != "Kotlin" && language != "Java" {
		return VersionSection{}, nil
	}
	path, content, err := firstFile(ctx, files, "build.gradle.kts", "build.gradle")
	if err != nil {
		return absent(err)
	}
	for _, m := range gradlePlugin.FindAllStringSubmatch(string(content), -1) {
		if m[2] == "" {
			return VersionSection{"hmpps_gradle_spring_boot": {Ref: m[1], Path: path}}, nil
		}
	}
	return VersionSection{}, nil
}

// DockerfileVersions reads the final base image and RDS CA bundle of the
// project's Dockerfile.
func DockerfileVersions(ctx context.Context, files repository.Files, projectDir string) (VersionSection, error) {
	path := repository.Join(projectDir, "Dockerfile")
	content, err := files.File(ctx, path)
	if err != nil {
		return absent(err)
	}

	section := VersionSection{}
	for _, cert := range rdsCACerts {
		if bytes.Contains(content, []byte(cert)) {
			section["rds_ca_cert"] = Version{Ref: cert, Path: path}
		}
	}

	images, err := ParentImages(content)
	if err != nil {
		return nil, errors.WrapParse("dockerfile", path, err)
	}
	var parents []string
	for _, img := range images {
		if img != "base" {
			parents = append(parents, img)
		}
	}
	if len(parents) > 0 {
		section["base_image"] = Version{Ref: parents[len(parents)-1], Path: path}
	}
	return section, nil
}

// ParentImages lists the image of every FROM instruction in order.
func ParentImages(dockerfile []byte) ([]string, error) {
	res, err := parser.Parse(bytes.NewReader(dockerfile))
	if err != nil {
		return nil, err
	}
	var images []string
	for _, child := range res.AST.Children {
		if strings.EqualFold(child.Value, "from") && child.Next != nil {
			images = append(images, child.Next.Value)
		}
	}
	return images, nil
}

// PythonVersions reads every locked package from uv.lock.
func PythonVersions(ctx context.Context, files repository.Files) (VersionSection, error) {
	const path = "uv.lock"
	content, err := files.File(ctx, path)
	if err != nil {
		return absent(err)
	}
	var lock struct {
		Package []struct {
			Name    string `toml:"name"`
			Version string `toml:"version"`
		} `toml:"package"`
	}
	if err := toml.Unmarshal(content, &lock); err != nil {
		return nil, errors.WrapParse("toml", path, err)
	}
	section := VersionSection{}
	for _, pkg := range lock.Package {
		if pkg.Name != "" && pkg.Version != "" {
			section[pkg.Name] = Version{Ref: pkg.Version, Path: path}
		}
	}
	return section, nil
}

func scalarString(v value.Value) string {
	s, ok := v.(value.Scalar)
	if !ok || s.V == nil {
		return ""
	}
	return fmt.Sprint(s.V)
}
