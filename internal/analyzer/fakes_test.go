package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spiffcs/forkaudit/internal/model"
)

var testProject = Project{Owner: "acme", Repo: "widgets"}

// fakeRepos serves PR pages and commit statuses from memory.
type fakeRepos struct {
	pages       [][]model.PullRequest
	statuses    map[string][]model.CommitStatus
	listErr     error
	statusErr   error
	pageCalls   int
	statusCalls int
}

func (f *fakeRepos) ListPullRequests(_ context.Context, _, _ string, page int, _ string) ([]model.PullRequest, error) {
	f.pageCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	if page-1 < len(f.pages) {
		return f.pages[page-1], nil
	}
	return nil, nil
}

func (f *fakeRepos) CommitStatuses(_ context.Context, _, _, sha string) ([]model.CommitStatus, error) {
	f.statusCalls++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.statuses[sha], nil
}

// fakeBuilds serves build documents and step output from memory.
type fakeBuilds struct {
	details    map[int]*model.BuildDetail
	outputs    map[string]string
	buildCalls []int
}

func (f *fakeBuilds) Build(_ context.Context, _, _ string, num int) (*model.BuildDetail, error) {
	f.buildCalls = append(f.buildCalls, num)
	d, ok := f.details[num]
	if !ok {
		return nil, fmt.Errorf("build %d: not found", num)
	}
	return d, nil
}

func (f *fakeBuilds) FetchRaw(_ context.Context, url string) ([]byte, error) {
	out, ok := f.outputs[url]
	if !ok {
		return nil, errors.New("no such object")
	}
	return []byte(out), nil
}

func forkPR(number int, user string) model.PullRequest {
	return model.PullRequest{
		Number:            number,
		HeadSHA:           fmt.Sprintf("sha%d", number),
		Author:            user,
		AuthorAssociation: model.AssociationNone,
		State:             "closed",
		IsFromFork:        true,
		HeadRepo:          user + "/widgets",
		CreatedAt:         time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func buildURL(num int) string {
	return fmt.Sprintf("https://circleci.com/gh/acme/widgets/%d", num)
}

func successStatus(num int, at time.Time) model.CommitStatus {
	return model.CommitStatus{
		TargetURL: buildURL(num),
		State:     model.StatusSuccess,
		CreatedAt: &at,
	}
}

// prBuild returns a build document with a current environment step whose
// output lives at outputURL.
func prBuild(num int, actor, outputURL string) *model.BuildDetail {
	return &model.BuildDetail{
		BuildNumber:  num,
		ActorLogin:   actor,
		ActorIsHuman: true,
		Branch:       fmt.Sprintf("pull/%d", num),
		Steps: []model.BuildStep{
			{Actions: []model.BuildAction{{Name: "Spin up environment", OutputURL: "https://logs.example/spin"}}},
			{Actions: []model.BuildAction{{Name: "Preparing environment variables", OutputURL: outputURL}}},
		},
	}
}

// jobOutput wraps log text the way the log storage serves it, with line
// breaks escaped inside the message.
func jobOutput(lines ...string) string {
	msg := ""
	for i, l := range lines {
		if i > 0 {
			msg += `\\r\\n`
		}
		msg += l
	}
	return `[{"type":"out","message":"` + msg + `"}]`
}
