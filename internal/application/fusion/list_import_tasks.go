package fusion

import (
	"context"
	"fmt"

	domain "github.com/mohammadpnp/person-fusion/internal/domain/fusion"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type ListImportTasksInput struct {
	CreatorID string
	Page      int
	Size      int
}

type ListImportTasksOutput struct {
	Items []TaskOutput `json:"items"`
	Total int64        `json:"total"`
	Page  int          `json:"page"`
	Size  int          `json:"size"`
}

type ListImportTasks interface {
	Execute(ctx context.Context, in ListImportTasksInput) (ListImportTasksOutput, error)
}

type importTaskLister interface {
	List(ctx context.Context, creatorID string, page, size int) (domain.TaskPage, error)
}

type listImportTasks struct {
	repo importTaskLister
}

func NewListImportTasks(repo importTaskLister) ListImportTasks {
	return &listImportTasks{repo: repo}
}

func (uc *listImportTasks) Execute(ctx context.Context, in ListImportTasksInput) (ListImportTasksOutput, error) {
	page := in.Page
	if page < 1 {
		page = 1
	}
	size := in.Size
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	result, err := uc.repo.List(ctx, in.CreatorID, page, size)
	if err != nil {
		return ListImportTasksOutput{}, fmt.Errorf("%w: %v", ErrListTasks, err)
	}

	items := make([]TaskOutput, 0, len(result.Items))
	for _, task := range result.Items {
		items = append(items, toTaskOutput(task))
	}
	return ListImportTasksOutput{Items: items, Total: result.Total, Page: page, Size: size}, nil
}
