package circleci

import (
	"fmt"

	"github.com/spiffcs/forkaudit/internal/model"
)

// buildResponse is the subset of the v1.1 build document we read. Every field
// is optional in practice, so all of them are pointers.
type buildResponse struct {
	BuildNum *int          `json:"build_num"`
	Branch   *string       `json:"branch"`
	User     *userResponse `json:"user"`
	Steps    []*struct {
		Actions []*actionResponse `json:"actions"`
	} `json:"steps"`
}

type userResponse struct {
	Login  *string `json:"login"`
	IsUser *bool   `json:"is_user"`
}

type actionResponse struct {
	Name      *string `json:"name"`
	OutputURL *string `json:"output_url"`
}

// toModel validates the response and converts it into a BuildDetail.
// A missing build number defaults to the requested one; a different one is
// rejected because the document would not describe the requested build.
func (r *buildResponse) toModel(requested int) (*model.BuildDetail, error) {
	detail := &model.BuildDetail{BuildNumber: requested}

	if r.BuildNum != nil && *r.BuildNum != requested {
		return nil, fmt.Errorf("build document is for build %d, expected %d", *r.BuildNum, requested)
	}

	if r.Branch != nil {
		detail.Branch = *r.Branch
	}

	if r.User != nil {
		if r.User.Login != nil {
			detail.ActorLogin = *r.User.Login
		}
		if r.User.IsUser != nil {
			detail.ActorIsHuman = *r.User.IsUser
		}
	}

	for _, step := range r.Steps {
		if step == nil {
			continue
		}
		var s model.BuildStep
		for _, action := range step.Actions {
			if action == nil {
				continue
			}
			var a model.BuildAction
			if action.Name != nil {
				a.Name = *action.Name
			}
			if action.OutputURL != nil {
				a.OutputURL = *action.OutputURL
			}
			s.Actions = append(s.Actions, a)
		}
		detail.Steps = append(detail.Steps, s)
	}

	return detail, nil
}

// projectBuild is a single entry of the recent builds list.
type projectBuild struct {
	BuildNum int `json:"build_num"`
}
