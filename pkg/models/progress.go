package models

import "time"

type ActivityCounts struct {
	Posts    int `json:"posts_count"`
	Comments int `json:"comments_count"`
	Likes    int `json:"likes_count"`
}

type ProgressDetails struct {
	ActivityCounts
	PagesVisited      int                  `json:"pages_visited"`
	TotalPages        int                  `json:"total_pages"`
	ResourcesAccessed int                  `json:"resources_accessed"`
	TotalResources    int                  `json:"total_resources"`
	VisitedPages      map[string]time.Time `json:"visited_pages"`
	PagesInfo         map[string]string    `json:"pages_info"`
	ResourcePagesInfo map[string]string    `json:"resource_pages_info"`
}

type Progress struct {
	Percentage      float64         `json:"progress_percentage"`
	ActivityPoints  int             `json:"activity_points"`
	ResourcesCount  int             `json:"resources_count"`
	EngagementScore float64         `json:"engagement_score"`
	Details         ProgressDetails `json:"details"`
	Suggestions     []string        `json:"suggestions"`
}
