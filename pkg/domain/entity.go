package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// EntityKind は物語要素の種別です。
type EntityKind string

const (
	KindCharacter EntityKind = "character"
	KindLocation  EntityKind = "location"
	KindScenario  EntityKind = "scenario"
	KindObject    EntityKind = "object"
)

// キャラクターの役割
const (
	RoleProtagonist = "protagonist"
	RoleAntagonist  = "antagonist"
	RoleSupporting  = "supporting"
	RoleMinor       = "minor"
)

// 場所のカテゴリ
const (
	CategoryInterior = "interior"
	CategoryExterior = "exterior"
	CategoryLandmark = "landmark"
	CategoryRealm    = "realm"
)

// シナリオの種別
const (
	ScenarioEvent    = "event"
	ScenarioConflict = "conflict"
	ScenarioBackdrop = "backdrop"
)

// オブジェクトの種別
const (
	ObjectWeapon   = "weapon"
	ObjectArtifact = "artifact"
	ObjectTool     = "tool"
	ObjectVehicle  = "vehicle"
	ObjectOther    = "other"
)

// roleEnums は種別ごとに許される役割の閉じた集合です。先頭がデフォルト値になります。
var roleEnums = map[EntityKind][]string{
	KindCharacter: {RoleSupporting, RoleProtagonist, RoleAntagonist, RoleMinor},
	KindLocation:  {CategoryExterior, CategoryInterior, CategoryLandmark, CategoryRealm},
	KindScenario:  {ScenarioEvent, ScenarioConflict, ScenarioBackdrop},
	KindObject:    {ObjectOther, ObjectWeapon, ObjectArtifact, ObjectTool, ObjectVehicle},
}

// Angle はエンティティの補助的なアングル画像です。
type Angle struct {
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Seed        int64  `json:"seed,omitempty"`
}

// Relationship はキャラクター同士の関係を表します。
type Relationship struct {
	TargetName       string `json:"target_name"`
	RelationshipType string `json:"relationship_type"`
	Description      string `json:"description,omitempty"`
}

// Entity は物語に登場する名前付きの要素（キャラクター・場所・シナリオ・オブジェクト）です。
// ImageURL を持つエンティティは「アンカー済み」として扱われ、後続の工程で再生成されません。
type Entity struct {
	ID            string         `json:"id"`
	Kind          EntityKind     `json:"kind"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	ImageURL      string         `json:"image_url,omitempty"`
	Seed          int64          `json:"seed,omitempty"` // 0 は未設定
	Role          string         `json:"role,omitempty"`
	Angles        []Angle        `json:"angles,omitempty"`
	Relationships []Relationship `json:"relationships,omitempty"`
	IsPrimary     bool           `json:"is_primary,omitempty"`
	UserAuthored  bool           `json:"user_authored,omitempty"`
}

// NewEntity は ID と正規化済みの役割を持つエンティティを生成します。
func NewEntity(kind EntityKind, name, description, role string) Entity {
	return Entity{
		ID:          uuid.NewString(),
		Kind:        kind,
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		Role:        NormalizeRole(kind, role),
	}
}

// Anchored は参照画像が既に存在するかどうかを返します。
func (e Entity) Anchored() bool {
	return strings.TrimSpace(e.ImageURL) != ""
}

// HasSeed はシード値が設定済みかどうかを返します。
func (e Entity) HasSeed() bool {
	return e.Seed > 0
}

// IsCharacter はキャラクターかどうかを返します。
func (e Entity) IsCharacter() bool {
	return e.Kind == KindCharacter
}

// AllImageURLs はメイン画像とアングル画像のURLを順番に返します。
func (e Entity) AllImageURLs() []string {
	var urls []string
	if e.Anchored() {
		urls = append(urls, e.ImageURL)
	}
	for _, a := range e.Angles {
		if a.ImageURL != "" {
			urls = append(urls, a.ImageURL)
		}
	}
	return urls
}

// Clone はスライスを含めたディープコピーを返します。
func (e Entity) Clone() Entity {
	c := e
	if e.Angles != nil {
		c.Angles = make([]Angle, len(e.Angles))
		copy(c.Angles, e.Angles)
	}
	if e.Relationships != nil {
		c.Relationships = make([]Relationship, len(e.Relationships))
		copy(c.Relationships, e.Relationships)
	}
	return c
}

// String はエンティティの情報を文字列で返すのだ。
func (e Entity) String() string {
	return fmt.Sprintf("%s [%s/%s]", e.Name, e.Kind, e.Role)
}

// NormalizeRole は自由記述の役割を種別ごとの閉じた列挙値へ寄せます。
// 該当しない場合は種別のデフォルト値になります。
func NormalizeRole(kind EntityKind, raw string) string {
	allowed, ok := roleEnums[kind]
	if !ok {
		return ""
	}
	r := strings.ToLower(strings.TrimSpace(raw))
	for _, v := range allowed {
		if r == v {
			return v
		}
	}
	return allowed[0]
}

// NormalizeKind は種別文字列を EntityKind に変換します。
func NormalizeKind(raw string) (EntityKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "character", "characters":
		return KindCharacter, nil
	case "location", "locations", "setting":
		return KindLocation, nil
	case "scenario", "scenarios":
		return KindScenario, nil
	case "object", "objects", "item", "items":
		return KindObject, nil
	default:
		return "", fmt.Errorf("不明なエンティティ種別です: %q", raw)
	}
}

// GetSeedFromName は名前から決定論的なシード値を生成します。
func GetSeedFromName(name string) int64 {
	hash := sha256.Sum256([]byte(name))
	seed := binary.BigEndian.Uint32(hash[:4])
	// シード値は正の数が望ましいため、最上位ビットを落とすのだ
	return int64(seed & 0x7FFFFFFF)
}

// LoadEntities はユーザーが作成したエンティティ定義（JSON配列）をファイルから読み込みます。
func LoadEntities(path string) ([]Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("エンティティファイルの読み込みに失敗しました: %w", err)
	}
	return ParseEntities(data)
}

// NormalizeUserEntity はユーザーが作成したエンティティを正規化します。
// 種別の省略はキャラクター、役割は閉じた列挙値へ寄せ、ID がなければ採番します。
// 名前が空の場合と種別が不明な場合はエラーです。
func NormalizeUserEntity(e Entity) (Entity, error) {
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		return e, errors.New("名前がありません")
	}
	kind := e.Kind
	if strings.TrimSpace(string(kind)) == "" {
		kind = KindCharacter
	}
	k, err := NormalizeKind(string(kind))
	if err != nil {
		return e, err
	}
	e.Kind = k
	e.Role = NormalizeRole(k, e.Role)
	e.UserAuthored = true
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if k != KindCharacter {
		e.Relationships = nil
	}
	return e, nil
}

// ParseEntities はJSON配列をパースし、ユーザー作成エンティティとして正規化します。
func ParseEntities(data []byte) ([]Entity, error) {
	var raw []Entity
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("エンティティ情報のJSONパースに失敗しました: %w", err)
	}

	entities := make([]Entity, 0, len(raw))
	for i, e := range raw {
		n, err := NormalizeUserEntity(e)
		if err != nil {
			return nil, fmt.Errorf("%d 番目のエンティティが不正です: %w", i+1, err)
		}
		entities = append(entities, n)
	}
	return entities, nil
}
