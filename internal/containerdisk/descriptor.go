package containerdisk

import (
	"bytes"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

const (
	DockerfileName   = "Dockerfile"
	DockerignoreName = ".dockerignore"
)

var (
	dockerfileTemplate = template.Must(template.New(DockerfileName).Funcs(sprig.TxtFuncMap()).Parse(
		`FROM scratch
{{- range .Payloads }}
ADD --chown={{ $.Owner }}:{{ $.Owner }} {{ .Src }} {{ .Dest }}
{{- end }}
LABEL org.opencontainers.image.description={{ .Description | quote }}
`))

	dockerignoreTemplate = template.Must(template.New(DockerignoreName).Funcs(sprig.TxtFuncMap()).Parse(
		`*
{{- range .Payloads }}
!{{ .Src }}
{{- end }}
`))
)

// BuildDescriptor is the generated build context of one architecture image.
type BuildDescriptor struct {
	Dockerfile   []byte
	Dockerignore []byte
}

// RenderBuildDescriptor renders a scratch based build that adds exactly the
// payload files, and an ignore list restricting the context to them.
func RenderBuildDescriptor(img ArchImage) (BuildDescriptor, error) {
	data := struct {
		ArchImage
		Owner int
	}{ArchImage: img, Owner: OwnerID}

	var df, di bytes.Buffer
	if err := dockerfileTemplate.Execute(&df, data); err != nil {
		return BuildDescriptor{}, err
	}
	if err := dockerignoreTemplate.Execute(&di, data); err != nil {
		return BuildDescriptor{}, err
	}

	return BuildDescriptor{Dockerfile: df.Bytes(), Dockerignore: di.Bytes()}, nil
}
